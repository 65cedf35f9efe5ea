package source

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyExists = errors.New("media source already exists")
	ErrNotFound      = errors.New("media source not found")
)

// Source is one registered media directory.
type Source struct {
	ID          string
	DisplayName string
	Path        string
	Enabled     bool
	IsDefault   bool
	CreatedAt   time.Time
}

//go:generate go run go.uber.org/mock/mockgen -source=source.go -destination=mocks/mock.go
type Repository interface {
	// Create registers a new media source.
	Create(ctx context.Context, s Source) error

	// Delete removes a source from the registry.
	Delete(ctx context.Context, id string) error

	// SetEnabled toggles a single source.
	SetEnabled(ctx context.Context, id string, enabled bool) error

	// List returns every registered source.
	List(ctx context.Context) ([]Source, error)

	// CustomSourcesEnabled reads the global custom-sources switch.
	CustomSourcesEnabled(ctx context.Context) (bool, error)

	// SetCustomSourcesEnabled writes the global custom-sources switch.
	SetCustomSourcesEnabled(ctx context.Context, enabled bool) error
}
