package commandparser

import (
	"context"
	"errors"

	"github.com/voxpost/voxpost/internal/domain"
)

var ErrParseFailed = errors.New("command parse failed")

//go:generate go run go.uber.org/mock/mockgen -source=commandparser.go -destination=mocks/mock.go
type Client interface {
	// Parse turns a transcript into a structured draft. Preselected media,
	// when supplied, is attached directly so no media query is emitted.
	Parse(ctx context.Context, transcript string, preselected []domain.MediaItem) (*domain.DraftPost, error)
}
