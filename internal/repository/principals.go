package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"learnhub/api/internal/models"
)

const principalColumns = `id, email, password_hash, display_name, role, status, created_by, created_at, updated_at`

func scanPrincipal(row pgx.Row) (models.Principal, error) {
	var p models.Principal
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.DisplayName,
		&p.Role,
		&p.Status,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Principal{}, ErrPrincipalNotFound
		}
		return models.Principal{}, err
	}
	return p, nil
}

func (s *Store) CreatePrincipal(ctx context.Context, p models.Principal) error {
	const query = `
		INSERT INTO principals (
			id, email, password_hash, display_name, role, status, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
	`

	_, err := s.db.Exec(ctx, query,
		p.ID,
		p.Email,
		p.PasswordHash,
		p.DisplayName,
		p.Role,
		p.Status,
		p.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (models.Principal, error) {
	const query = `SELECT ` + principalColumns + ` FROM principals WHERE email = $1`
	return scanPrincipal(s.db.QueryRow(ctx, query, email))
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Principal, error) {
	const query = `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`
	return scanPrincipal(s.db.QueryRow(ctx, query, id))
}

func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]models.Principal, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE id = ANY($1)
		ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var principals []models.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	return principals, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	const query = `UPDATE principals SET status = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := s.db.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (s *Store) DeletePrincipal(ctx context.Context, id string) error {
	const query = `DELETE FROM principals WHERE id = $1`
	cmd, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}
