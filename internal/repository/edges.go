package repository

import (
	"context"
	"fmt"

	"learnhub/api/internal/models"
)

// Each relation has its own mapping table. The UNIQUE constraint on the
// owned column enforces "at most one owner per subordinate".
type edgeTable struct {
	name     string
	ownerCol string
	ownedCol string
}

func tableFor(rel models.Relation) (edgeTable, error) {
	switch rel {
	case models.RelationAdminTutor:
		return edgeTable{name: "admin_tutors", ownerCol: "admin_id", ownedCol: "tutor_id"}, nil
	case models.RelationTutorStudent:
		return edgeTable{name: "tutor_students", ownerCol: "tutor_id", ownedCol: "student_id"}, nil
	default:
		return edgeTable{}, fmt.Errorf("unknown relation %q", rel)
	}
}

func (s *Store) CreateEdge(ctx context.Context, rel models.Relation, ownerID, ownedID string) error {
	t, err := tableFor(rel)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s, %s, created_at) VALUES ($1, $2, NOW())`,
		t.name, t.ownerCol, t.ownedCol,
	)
	if _, err := s.db.Exec(ctx, query, ownerID, ownedID); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEdge
		}
		return err
	}
	return nil
}

func (s *Store) ListOwnedIDs(ctx context.Context, rel models.Relation, ownerID string) ([]string, error) {
	t, err := tableFor(rel)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 ORDER BY created_at`,
		t.ownedCol, t.name, t.ownerCol,
	)
	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) DeleteEdgesByOwner(ctx context.Context, rel models.Relation, ownerID string) (int64, error) {
	t, err := tableFor(rel)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.name, t.ownerCol)
	cmd, err := s.db.Exec(ctx, query, ownerID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (s *Store) DeleteEdgeByOwned(ctx context.Context, rel models.Relation, ownedID string) (int64, error) {
	t, err := tableFor(rel)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.name, t.ownedCol)
	cmd, err := s.db.Exec(ctx, query, ownedID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// PruneOrphanEdges removes edges whose endpoints no longer exist. Self-only
// deletes leave such edges behind on purpose; the nightly job sweeps them.
func (s *Store) PruneOrphanEdges(ctx context.Context) (int64, error) {
	var total int64
	for _, rel := range []models.Relation{models.RelationAdminTutor, models.RelationTutorStudent} {
		t, err := tableFor(rel)
		if err != nil {
			return total, err
		}

		query := fmt.Sprintf(`
			DELETE FROM %s e
			WHERE NOT EXISTS (SELECT 1 FROM principals p WHERE p.id = e.%s)
			   OR NOT EXISTS (SELECT 1 FROM principals p WHERE p.id = e.%s)
		`, t.name, t.ownerCol, t.ownedCol)

		cmd, err := s.db.Exec(ctx, query)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", t.name, err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}
