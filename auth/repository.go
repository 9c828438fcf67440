package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAccountNotFound signals that the account does not exist.
	ErrAccountNotFound = errors.New("auth: account not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

// Repository handles data access for accounts.
type Repository interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, accountID string) (Account, error)
}

// CreateAccountParams contains write parameters for creating accounts.
type CreateAccountParams struct {
	Email        string
	FullName     string
	PasswordHash string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateAccount inserts a new account with an already hashed password.
func (r *PGRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	const insertSQL = `
		INSERT INTO accounts (email, full_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id::text, email, full_name, password_hash, created_at
	`

	account, err := scanAccount(r.pool.QueryRow(ctx, insertSQL, params.Email, params.FullName, params.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateEmail
		}
		return Account{}, fmt.Errorf("auth: create account: %w", err)
	}

	return account, nil
}

// GetAccountByEmail retrieves an account by email address.
func (r *PGRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	const selectSQL = `
		SELECT id::text, email, full_name, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`

	account, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("auth: get account by email: %w", err)
	}

	return account, nil
}

// GetAccountByID retrieves an account by ID.
func (r *PGRepository) GetAccountByID(ctx context.Context, accountID string) (Account, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return Account{}, ErrAccountNotFound
	}

	const selectSQL = `
		SELECT id::text, email, full_name, password_hash, created_at
		FROM accounts
		WHERE id = $1
	`

	account, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("auth: get account by id: %w", err)
	}

	return account, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var account Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.FullName,
		&account.PasswordHash,
		&account.CreatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// MemoryRepository keeps accounts in process memory. It is used when no
// database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]Account
	byID    map[string]Account
	now     func() time.Time
}

// NewMemoryRepository returns an empty in-memory account repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byEmail: make(map[string]Account),
		byID:    make(map[string]Account),
		now:     time.Now,
	}
}

func (m *MemoryRepository) CreateAccount(_ context.Context, params CreateAccountParams) (Account, error) {
	key := strings.ToLower(params.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[key]; exists {
		return Account{}, ErrDuplicateEmail
	}

	account := Account{
		ID:           uuid.NewString(),
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		CreatedAt:    m.now().UTC(),
	}
	m.byEmail[key] = account
	m.byID[account.ID] = account

	return account, nil
}

func (m *MemoryRepository) GetAccountByEmail(_ context.Context, email string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (m *MemoryRepository) GetAccountByID(_ context.Context, accountID string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byID[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}
