package service

import (
	"context"
	"sync"

	"learnhub/api/internal/models"
	"learnhub/api/internal/repository"
)

// fakeStore is an in-memory repository.HierarchyStore. WithTx snapshots
// the maps and restores them when fn fails, mirroring a rollback.
type fakeStore struct {
	mu         sync.Mutex
	principals map[string]models.Principal
	edges      map[models.Relation]map[string]string // owned id -> owner id

	failCreateEdge      bool
	failDeletePrincipal map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		principals: make(map[string]models.Principal),
		edges: map[models.Relation]map[string]string{
			models.RelationAdminTutor:   {},
			models.RelationTutorStudent: {},
		},
		failDeletePrincipal: make(map[string]bool),
	}
}

func (f *fakeStore) snapshot() (map[string]models.Principal, map[models.Relation]map[string]string) {
	principals := make(map[string]models.Principal, len(f.principals))
	for k, v := range f.principals {
		principals[k] = v
	}
	edges := make(map[models.Relation]map[string]string, len(f.edges))
	for rel, m := range f.edges {
		copied := make(map[string]string, len(m))
		for k, v := range m {
			copied[k] = v
		}
		edges[rel] = copied
	}
	return principals, edges
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx repository.HierarchyStore) error) error {
	f.mu.Lock()
	principals, edges := f.snapshot()
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.principals, f.edges = principals, edges
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) CreatePrincipal(ctx context.Context, p models.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.principals {
		if existing.Email == p.Email {
			return repository.ErrDuplicateEmail
		}
	}
	f.principals[p.ID] = p
	return nil
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals {
		if p.Email == email {
			return p, nil
		}
	}
	return models.Principal{}, repository.ErrPrincipalNotFound
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.principals[id]
	if !ok {
		return models.Principal{}, repository.ErrPrincipalNotFound
	}
	return p, nil
}

func (f *fakeStore) ListByIDs(ctx context.Context, ids []string) ([]models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Principal
	for _, id := range ids {
		if p, ok := f.principals[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.principals[id]
	if !ok {
		return repository.ErrPrincipalNotFound
	}
	p.Status = status
	f.principals[id] = p
	return nil
}

func (f *fakeStore) DeletePrincipal(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeletePrincipal[id] {
		return errAbort
	}
	if _, ok := f.principals[id]; !ok {
		return repository.ErrPrincipalNotFound
	}
	delete(f.principals, id)
	return nil
}

func (f *fakeStore) CreateEdge(ctx context.Context, rel models.Relation, ownerID, ownedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateEdge {
		return errAbort
	}
	if _, exists := f.edges[rel][ownedID]; exists {
		return repository.ErrDuplicateEdge
	}
	f.edges[rel][ownedID] = ownerID
	return nil
}

func (f *fakeStore) ListOwnedIDs(ctx context.Context, rel models.Relation, ownerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owned []string
	for ownedID, owner := range f.edges[rel] {
		if owner == ownerID {
			owned = append(owned, ownedID)
		}
	}
	return owned, nil
}

func (f *fakeStore) DeleteEdgesByOwner(ctx context.Context, rel models.Relation, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for ownedID, owner := range f.edges[rel] {
		if owner == ownerID {
			delete(f.edges[rel], ownedID)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteEdgeByOwned(ctx context.Context, rel models.Relation, ownedID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.edges[rel][ownedID]; !ok {
		return 0, nil
	}
	delete(f.edges[rel], ownedID)
	return 1, nil
}

func (f *fakeStore) edgeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edges[models.RelationAdminTutor]) + len(f.edges[models.RelationTutorStudent])
}

func (f *fakeStore) principalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.principals)
}
