package publisher

import (
	"context"
	"errors"

	"github.com/voxpost/voxpost/internal/domain"
)

var (
	ErrPlatformUnavailable = errors.New("no publisher for platform")
	ErrNotAuthenticated    = errors.New("platform not authenticated")
	ErrMediaRequired       = errors.New("platform requires media")
	ErrPublishFailed       = errors.New("publish failed")
)

//go:generate go run go.uber.org/mock/mockgen -source=publisher.go -destination=mocks/mock.go
type Client interface {
	// Publish posts the draft to a single platform. Errors are per platform;
	// the caller decides how a partial failure across platforms is handled.
	Publish(ctx context.Context, platform domain.Platform, draft *domain.DraftPost) error

	// IsAuthenticated reports whether the platform adapter has working
	// credentials. It must be cheap; it is polled on every readiness check.
	IsAuthenticated(platform domain.Platform) bool
}
