package repository

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sundayezeilo/repocatalog/internal/errx"
	"github.com/sundayezeilo/repocatalog/internal/idgen"
)

// ErrNotFound is wrapped by every store error for an unknown identifier.
var ErrNotFound = errors.New("repository not found")

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps records in process memory, in insertion order.
// It is safe for concurrent use; contents are lost when the process exits.
type MemoryStore struct {
	mu    sync.RWMutex
	repos []Repository
	ids   idgen.Generator
}

// StoreConfig holds configuration for the store.
type StoreConfig struct {
	IDGenerator idgen.Generator
}

// NewMemoryStore creates an empty store. A nil config uses UUID v4 identifiers.
func NewMemoryStore(config *StoreConfig) *MemoryStore {
	if config == nil {
		config = &StoreConfig{}
	}

	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV4()
	}

	return &MemoryStore{
		repos: make([]Repository, 0),
		ids:   ids,
	}
}

func (s *MemoryStore) List(_ context.Context, titleContains string) ([]Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Repository, 0, len(s.repos))
	for _, r := range s.repos {
		if titleContains == "" || titleMatches(r, titleContains) {
			out = append(out, r.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, repo Repository) (Repository, error) {
	const op = "repository.store.Create"

	id, err := s.ids.Generate()
	if err != nil {
		return Repository{}, errx.E(op, errx.Unavailable, err)
	}

	repo = repo.clone()
	repo.ID = id
	repo.Likes = 0

	s.mu.Lock()
	s.repos = append(s.repos, repo)
	s.mu.Unlock()

	return repo.clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, repo Repository) (Repository, error) {
	const op = "repository.store.Update"

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(repo.ID)
	if i < 0 {
		return Repository{}, errx.E(op, errx.NotFound, ErrNotFound)
	}

	updated := repo.clone()
	updated.Likes = s.repos[i].Likes
	s.repos[i] = updated

	return updated.clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	const op = "repository.store.Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return errx.E(op, errx.NotFound, ErrNotFound)
	}

	s.repos = slices.Delete(s.repos, i, i+1)
	return nil
}

func (s *MemoryStore) Like(_ context.Context, id uuid.UUID) (Repository, error) {
	const op = "repository.store.Like"

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Repository{}, errx.E(op, errx.NotFound, ErrNotFound)
	}

	s.repos[i].Likes++
	return s.repos[i].clone(), nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.repos)
}

// titleMatches reports whether r has a string title containing substr.
// Titles of any other JSON type never match a filter.
func titleMatches(r Repository, substr string) bool {
	title, ok := r.TitleText()
	return ok && strings.Contains(title, substr)
}

// indexOf does a linear scan for id. Callers must hold s.mu.
func (s *MemoryStore) indexOf(id uuid.UUID) int {
	for i := range s.repos {
		if s.repos[i].ID == id {
			return i
		}
	}
	return -1
}
