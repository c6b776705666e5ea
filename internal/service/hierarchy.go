package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"learnhub/api/internal/ids"
	"learnhub/api/internal/models"
	"learnhub/api/internal/repository"
	"learnhub/api/internal/security"
)

var (
	ErrWrongCreatorRole     = errors.New("creator role cannot own this subordinate role")
	ErrWrongSubordinateRole = errors.New("role cannot be provisioned through the hierarchy")
	ErrNotFound             = repository.ErrPrincipalNotFound
)

// CascadeResult reports how many rows a delete removed at each level.
type CascadeResult struct {
	DeletedSelf     int `json:"deletedSelf"`
	DeletedTutors   int `json:"deletedTutors,omitempty"`
	DeletedStudents int `json:"deletedStudents,omitempty"`
}

// HierarchyService maintains the creator → created ownership graph and
// performs cascading deletes along it. The deletes themselves are
// unconditional; "active principals must be deactivated first" is a
// precondition the HTTP layer enforces.
type HierarchyService struct {
	store repository.HierarchyStore
	log   zerolog.Logger
}

func NewHierarchyService(store repository.HierarchyStore, log zerolog.Logger) *HierarchyService {
	return &HierarchyService{store: store, log: log}
}

type SubordinateInput struct {
	Email       string
	Password    string
	DisplayName string
}

// CreateOwned provisions a subordinate account and its ownership edge in a
// single transaction; if the edge cannot be written the account is not
// created either.
func (s *HierarchyService) CreateOwned(ctx context.Context, creator *security.Claims, input SubordinateInput, subordinateRole models.Role) (models.Principal, error) {
	rel, ok := models.RelationFor(subordinateRole)
	if !ok {
		return models.Principal{}, ErrWrongSubordinateRole
	}
	ownerRole, _ := subordinateRole.OwnerRole()

	creatorRole, ok := models.ParseRole(creator.RoleName)
	if !ok || !creatorRole.Implies(ownerRole) {
		return models.Principal{}, ErrWrongCreatorRole
	}

	email := NormalizeEmail(input.Email)
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return models.Principal{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrPrincipalNotFound) {
		return models.Principal{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.Principal{}, err
	}

	creatorID := creator.PrincipalID
	principal := models.Principal{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		Role:         subordinateRole,
		Status:       models.StatusActive,
		CreatedBy:    &creatorID,
	}

	err = s.store.WithTx(ctx, func(tx repository.HierarchyStore) error {
		if err := tx.CreatePrincipal(ctx, principal); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return ErrEmailTaken
			}
			return err
		}
		if err := tx.CreateEdge(ctx, rel, creatorID, principal.ID); err != nil {
			return fmt.Errorf("create ownership edge: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Principal{}, err
	}

	s.log.Info().
		Str("creator_id", creatorID).
		Str("principal_id", principal.ID).
		Str("role", string(subordinateRole)).
		Msg("subordinate provisioned")
	return principal, nil
}

// ListOwned resolves the owner's edges for the given subordinate role and
// fetches the matching principal rows. No edges is an empty list, not an
// error.
func (s *HierarchyService) ListOwned(ctx context.Context, ownerID string, ownedRole models.Role) ([]models.Principal, error) {
	rel, ok := models.RelationFor(ownedRole)
	if !ok {
		return nil, ErrWrongSubordinateRole
	}

	ownedIDs, err := s.store.ListOwnedIDs(ctx, rel, ownerID)
	if err != nil {
		return nil, err
	}
	if len(ownedIDs) == 0 {
		return []models.Principal{}, nil
	}

	return s.store.ListByIDs(ctx, ownedIDs)
}

func (s *HierarchyService) Get(ctx context.Context, id string) (models.Principal, error) {
	return s.store.GetByID(ctx, id)
}

func (s *HierarchyService) SetStatus(ctx context.Context, id string, status models.Status) error {
	return s.store.UpdateStatus(ctx, id, status)
}

// DeleteCascade removes the principal and everything it transitively owns
// in one transaction. Ordering inside the transaction is children before
// parents, grandchildren first: edges for a level go before the rows they
// reference, and deletion never cascades upward.
func (s *HierarchyService) DeleteCascade(ctx context.Context, principalID string) (CascadeResult, error) {
	var result CascadeResult
	err := s.store.WithTx(ctx, func(tx repository.HierarchyStore) error {
		principal, err := tx.GetByID(ctx, principalID)
		if err != nil {
			return err
		}

		switch principal.Role {
		case models.RoleAdmin:
			tutorIDs, err := tx.ListOwnedIDs(ctx, models.RelationAdminTutor, principalID)
			if err != nil {
				return err
			}
			for _, tutorID := range tutorIDs {
				n, err := deleteOwnedStudents(ctx, tx, tutorID)
				if err != nil {
					return err
				}
				result.DeletedStudents += n
			}
			if _, err := tx.DeleteEdgesByOwner(ctx, models.RelationAdminTutor, principalID); err != nil {
				return err
			}
			for _, tutorID := range tutorIDs {
				if err := tx.DeletePrincipal(ctx, tutorID); err != nil {
					return err
				}
				result.DeletedTutors++
			}

		case models.RoleTutor:
			n, err := deleteOwnedStudents(ctx, tx, principalID)
			if err != nil {
				return err
			}
			result.DeletedStudents = n
			if _, err := tx.DeleteEdgeByOwned(ctx, models.RelationAdminTutor, principalID); err != nil {
				return err
			}

		case models.RoleStudent:
			if _, err := tx.DeleteEdgeByOwned(ctx, models.RelationTutorStudent, principalID); err != nil {
				return err
			}
		}

		if err := tx.DeletePrincipal(ctx, principalID); err != nil {
			return err
		}
		result.DeletedSelf = 1
		return nil
	})
	if err != nil {
		return CascadeResult{}, err
	}

	s.log.Info().
		Str("principal_id", principalID).
		Int("tutors", result.DeletedTutors).
		Int("students", result.DeletedStudents).
		Msg("cascade delete completed")
	return result, nil
}

func deleteOwnedStudents(ctx context.Context, tx repository.HierarchyStore, tutorID string) (int, error) {
	studentIDs, err := tx.ListOwnedIDs(ctx, models.RelationTutorStudent, tutorID)
	if err != nil {
		return 0, err
	}
	if _, err := tx.DeleteEdgesByOwner(ctx, models.RelationTutorStudent, tutorID); err != nil {
		return 0, err
	}
	for _, studentID := range studentIDs {
		if err := tx.DeletePrincipal(ctx, studentID); err != nil {
			return 0, err
		}
	}
	return len(studentIDs), nil
}

// DeleteSelfOnly removes exactly one principal row. Subordinates and their
// edges stay behind; the nightly prune job clears edges whose endpoints
// are gone.
func (s *HierarchyService) DeleteSelfOnly(ctx context.Context, principalID string) error {
	return s.store.DeletePrincipal(ctx, principalID)
}
