package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolegate/rolegate/internal/rbac"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = errors.New("users: not found")

// ErrDuplicateEmail indicates the email is already registered.
var ErrDuplicateEmail = errors.New("users: duplicate email")

// Repository provides PostgreSQL backed persistence. Loaded users come back
// with their Authorizer bound to the RBAC store.
type Repository struct {
	pool  *pgxpool.Pool
	store rbac.Store
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, store rbac.Store) *Repository {
	return &Repository{pool: pool, store: store}
}

// List returns all users ordered by ID.
func (r *Repository) List(ctx context.Context) ([]*User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, name, password_hash, is_active, created_at, updated_at
		 FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		user, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// ByID fetches one user by ID.
func (r *Repository) ByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, is_active, created_at, updated_at
		 FROM users WHERE id = $1`, id)
	return r.scanRow(row)
}

// ByEmail fetches one user by email.
func (r *Repository) ByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, is_active, created_at, updated_at
		 FROM users WHERE email = $1`, email)
	return r.scanRow(row)
}

// Create inserts a new user and binds its Authorizer.
func (r *Repository) Create(ctx context.Context, email, name, passwordHash string) (*User, error) {
	user := &User{Email: email, Name: name, PasswordHash: passwordHash, IsActive: true}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING id, created_at, updated_at`,
		email, name, passwordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("users: create: %w", err)
	}
	r.bind(user)
	return user, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func (r *Repository) scan(src scannable) (*User, error) {
	var user User
	err := src.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.bind(&user)
	return &user, nil
}

func (r *Repository) scanRow(row pgx.Row) (*User, error) {
	user, err := r.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: fetch: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repository) bind(user *User) {
	id := user.ID
	user.Authorizer = rbac.NewAuthorizer(r.store, func() int64 { return id })
}
