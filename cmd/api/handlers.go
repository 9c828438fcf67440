package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"propertyhub/auth"
	"propertyhub/listing"
	"propertyhub/metrics"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

type createPropertyRequest struct {
	Location     string   `json:"location" validate:"required"`
	Price        *float64 `json:"price" validate:"required,gt=0"`
	PropertyType string   `json:"property_type" validate:"required"`
	Description  *string  `json:"description" validate:"required"`
	Amenities    []string `json:"amenities" validate:"required"`
}

type createPropertyResponse struct {
	PropertyID string `json:"property_id"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type searchParams struct {
	MinPrice     *float64 `query:"min_price" validate:"omitempty,gt=0"`
	MaxPrice     *float64 `query:"max_price" validate:"omitempty,gt=0"`
	Location     string   `query:"location"`
	PropertyType string   `query:"property_type"`
	Page         int      `query:"page" validate:"gt=0"`
	Limit        int      `query:"limit" validate:"gt=0"`
}

type searchResponse struct {
	Results []listing.View `json:"results"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type shortlistedResponse struct {
	Shortlisted []listing.View `json:"shortlisted"`
}

type portfolioResponse struct {
	Properties []listing.View `json:"properties"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	CreatedAt string `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
	AccountID   string `json:"account_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req createPropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		s.metrics.ObserveOperation("create", metrics.OutcomeRejected)
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	id, err := s.store.Create(userID, listing.Details{
		Location:     req.Location,
		Price:        *req.Price,
		PropertyType: req.PropertyType,
		Description:  *req.Description,
		Amenities:    req.Amenities,
	})
	if err != nil {
		s.writeListingError(w, "create", err)
		return
	}

	s.metrics.ObserveOperation("create", metrics.OutcomeOK)
	writeJSON(w, http.StatusOK, createPropertyResponse{PropertyID: id})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	propertyID := chi.URLParam(r, "property_id")

	req := updateStatusRequest{Status: r.URL.Query().Get("status")}
	if req.Status == "" && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		s.metrics.ObserveOperation("update_status", metrics.OutcomeRejected)
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	if err := s.store.UpdateStatus(propertyID, req.Status, userID); err != nil {
		s.writeListingError(w, "update_status", err)
		return
	}

	s.metrics.ObserveOperation("update_status", metrics.OutcomeOK)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := validate.Struct(params); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	results := s.queries.Search(listing.Criteria{
		MinPrice:     params.MinPrice,
		MaxPrice:     params.MaxPrice,
		Location:     params.Location,
		PropertyType: params.PropertyType,
	})
	s.metrics.ObserveOperation("search", metrics.OutcomeOK)
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "No properties found matching criteria")
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results: listing.Views(paginate(results, params.Page, params.Limit)),
		Total:   len(results),
		Page:    params.Page,
		Limit:   params.Limit,
	})
}

func (s *Server) handleShortlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	propertyID := chi.URLParam(r, "property_id")

	if err := s.queries.Shortlist(userID, propertyID); err != nil {
		s.writeListingError(w, "shortlist", err)
		return
	}

	s.metrics.ObserveOperation("shortlist", metrics.OutcomeOK)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleShortlisted(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	shortlisted := s.queries.Shortlisted(userID)
	if len(shortlisted) == 0 {
		writeError(w, http.StatusNotFound, "No shortlisted properties found")
		return
	}

	writeJSON(w, http.StatusOK, shortlistedResponse{Shortlisted: listing.Views(shortlisted)})
}

func (s *Server) handleMyProperties(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, portfolioResponse{Properties: listing.Views(s.store.ListByOwner(userID))})
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	prop, err := s.store.Get(chi.URLParam(r, "property_id"))
	if err != nil {
		s.writeListingError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, prop.View())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	account, err := s.accounts.Register(r.Context(), auth.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "Email already registered")
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrMissingFields):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.log().Error("register account", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

// handleMe returns the account behind the caller id. Callers identified only
// by current_user have no account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	account, err := s.accounts.GetAccountByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		s.log().Error("get account", zap.String("account_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func newAccountResponse(account *auth.Account) accountResponse {
	return accountResponse{
		ID:        account.ID,
		Email:     account.Email,
		FullName:  account.FullName,
		CreatedAt: account.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	result, err := s.accounts.Login(r.Context(), auth.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.log().Error("login", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		ExpiresAt:   result.ExpiresAt.UTC().Format(time.RFC3339),
		AccountID:   result.Account.ID,
	})
}

// writeListingError maps core errors onto status codes and records the
// operation outcome.
func (s *Server) writeListingError(w http.ResponseWriter, op string, err error) {
	outcome := metrics.OutcomeRejected
	switch {
	case errors.Is(err, listing.ErrNotFound):
		writeError(w, http.StatusNotFound, "Property not found")
	case errors.Is(err, listing.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Unauthorized access")
	case errors.Is(err, listing.ErrAlreadyShortlisted):
		writeError(w, http.StatusBadRequest, "Property already shortlisted")
	case errors.Is(err, listing.ErrMissingOwner), errors.Is(err, listing.ErrInvalidPrice):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		outcome = metrics.OutcomeError
		s.log().Error("listing operation failed", zap.String("operation", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
	s.metrics.ObserveOperation(op, outcome)
}

func parseSearchParams(r *http.Request) (searchParams, error) {
	q := r.URL.Query()
	params := searchParams{
		Location:     q.Get("location"),
		PropertyType: q.Get("property_type"),
		Page:         defaultPage,
		Limit:        defaultLimit,
	}

	var err error
	if params.MinPrice, err = optionalFloat(q.Get("min_price"), "min_price"); err != nil {
		return searchParams{}, err
	}
	if params.MaxPrice, err = optionalFloat(q.Get("max_price"), "max_price"); err != nil {
		return searchParams{}, err
	}
	if params.Page, err = optionalInt(q.Get("page"), "page", defaultPage); err != nil {
		return searchParams{}, err
	}
	if params.Limit, err = optionalInt(q.Get("limit"), "limit", defaultLimit); err != nil {
		return searchParams{}, err
	}
	return params, nil
}

func optionalFloat(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New(name + " must be a number")
	}
	return &v, nil
}

func optionalInt(raw, name string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

// paginate returns the 1-based page of items. A page past the end is empty.
func paginate(items []listing.Property, page, limit int) []listing.Property {
	if page-1 > len(items)/limit {
		return []listing.Property{}
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []listing.Property{}
	}
	end := len(items)
	if limit < end-start {
		end = start + limit
	}
	return items[start:end]
}
