package repository

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the storage operations for Repository records. The record
// sequence is kept in insertion order and lookups are by identifier.
type Store interface {
	// List returns all records whose title contains titleContains, or all
	// records when it is empty.
	List(ctx context.Context, titleContains string) ([]Repository, error)
	// Create assigns a new identifier, zeroes the like count and appends the record.
	Create(ctx context.Context, repo Repository) (Repository, error)
	// Update replaces title, URL and techs of the record with repo.ID, keeping its likes.
	Update(ctx context.Context, repo Repository) (Repository, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Like(ctx context.Context, id uuid.UUID) (Repository, error)
	Len() int
}
