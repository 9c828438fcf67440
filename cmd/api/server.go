package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"propertyhub/auth"
	"propertyhub/listing"
	"propertyhub/metrics"
)

type contextKey string

const ctxKeyUserID contextKey = "userID"

type propertyStore interface {
	Create(ownerID string, details listing.Details) (string, error)
	UpdateStatus(propertyID, status, callerID string) error
	ListByOwner(ownerID string) []listing.Property
	Get(propertyID string) (listing.Property, error)
}

type propertyQueries interface {
	Search(criteria listing.Criteria) []listing.Property
	Shortlist(userID, propertyID string) error
	Shortlisted(userID string) []listing.Property
}

type accountService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Account, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, error)
	GetAccountByID(ctx context.Context, accountID string) (*auth.Account, error)
}

// Server wires the listing core to HTTP. accounts is nil when registration
// and bearer tokens are disabled.
type Server struct {
	store    propertyStore
	queries  propertyQueries
	accounts accountService
	metrics  *metrics.Collector
	logger   *zap.Logger

	defaultUser  string
	authRequired bool
	corsOrigins  []string
}

// ServerOptions carries the edge settings taken from configuration.
type ServerOptions struct {
	DefaultUser  string
	AuthRequired bool
	CORSOrigins  []string
}

func NewServer(store propertyStore, queries propertyQueries, accounts accountService, collector *metrics.Collector, logger *zap.Logger, opts ServerOptions) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:        store,
		queries:      queries,
		accounts:     accounts,
		metrics:      collector,
		logger:       logger,
		defaultUser:  opts.DefaultUser,
		authRequired: opts.AuthRequired,
		corsOrigins:  opts.CORSOrigins,
	}
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.accounts != nil {
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.identify)

			r.Post("/properties", s.handleCreateProperty)
			r.Get("/properties/search", s.handleSearch)
			r.Get("/properties/shortlisted", s.handleShortlisted)
			r.Get("/properties/mine", s.handleMyProperties)
			r.Post("/properties/shortlist/{property_id}", s.handleShortlist)
			r.Patch("/properties/{property_id}/status", s.handleUpdateStatus)
			r.Get("/properties/{property_id}", s.handleGetProperty)

			if s.accounts != nil {
				r.Get("/auth/me", s.handleMe)
			}
		})
	})

	return r
}

func (s *Server) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

func userIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ctxKeyUserID).(string)
	return userID, ok && userID != ""
}
