package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/sundayezeilo/repocatalog/internal/errx"
)

// CreateRequest represents the fields a client supplies for a new record.
// Nil fields are stored as an empty string or an empty list.
type CreateRequest struct {
	Title json.RawMessage
	URL   json.RawMessage
	Techs json.RawMessage
}

// UpdateRequest replaces every client-editable field of a record.
type UpdateRequest struct {
	Title json.RawMessage
	URL   json.RawMessage
	Techs json.RawMessage
}

// ListFilter narrows List results. The zero value matches everything.
type ListFilter struct {
	// TitleContains is a case-sensitive substring matched against Title.
	TitleContains string
}

// Service defines the catalog operations exposed over HTTP.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]Repository, error)
	Create(ctx context.Context, req CreateRequest) (Repository, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Repository, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Like(ctx context.Context, id uuid.UUID) (Repository, error)
}

type service struct {
	store Store
}

// NewService creates a new service instance backed by store.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Repository, error) {
	const op = "repository.service.List"

	repos, err := s.store.List(ctx, filter.TitleContains)
	if err != nil {
		return nil, errx.E(op, kindOf(err), err)
	}
	return repos, nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (Repository, error) {
	const op = "repository.service.Create"

	created, err := s.store.Create(ctx, Repository{
		Title: req.Title,
		URL:   req.URL,
		Techs: req.Techs,
	}.withDefaults())
	if err != nil {
		return Repository{}, errx.E(op, kindOf(err), err)
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Repository, error) {
	const op = "repository.service.Update"

	updated, err := s.store.Update(ctx, Repository{
		ID:    id,
		Title: req.Title,
		URL:   req.URL,
		Techs: req.Techs,
	}.withDefaults())
	if err != nil {
		return Repository{}, errx.E(op, kindOf(err), err)
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "repository.service.Delete"

	if err := s.store.Delete(ctx, id); err != nil {
		return errx.E(op, kindOf(err), err)
	}
	return nil
}

func (s *service) Like(ctx context.Context, id uuid.UUID) (Repository, error) {
	const op = "repository.service.Like"

	liked, err := s.store.Like(ctx, id)
	if err != nil {
		return Repository{}, errx.E(op, kindOf(err), err)
	}
	return liked, nil
}

// kindOf keeps the kind of a store error. Errors without one are internal.
func kindOf(err error) errx.Kind {
	if kind := errx.KindOf(err); kind != errx.Unknown {
		return kind
	}
	return errx.Internal
}
