package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnhub/api/internal/models"
)

var (
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrEdgeNotFound      = errors.New("ownership edge not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateEdge     = errors.New("subordinate already owned")
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same queries serve plain calls and transactional cascades.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// HierarchyStore is the persistence surface the services program against.
type HierarchyStore interface {
	CreatePrincipal(ctx context.Context, p models.Principal) error
	FindByEmail(ctx context.Context, email string) (models.Principal, error)
	GetByID(ctx context.Context, id string) (models.Principal, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Principal, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	DeletePrincipal(ctx context.Context, id string) error

	CreateEdge(ctx context.Context, rel models.Relation, ownerID, ownedID string) error
	ListOwnedIDs(ctx context.Context, rel models.Relation, ownerID string) ([]string, error)
	DeleteEdgesByOwner(ctx context.Context, rel models.Relation, ownerID string) (int64, error)
	DeleteEdgeByOwned(ctx context.Context, rel models.Relation, ownedID string) (int64, error)

	// WithTx runs fn against a store bound to a single transaction,
	// committing on nil and rolling back otherwise. Must not be nested.
	WithTx(ctx context.Context, fn func(tx HierarchyStore) error) error
}

// Store implements HierarchyStore over postgres.
type Store struct {
	db   Querier
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx HierarchyStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{db: tx, pool: s.pool}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
