package publisherimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/internal/publisher"
	"github.com/voxpost/voxpost/internal/ratelimit"
	"github.com/voxpost/voxpost/pkg/config"
	"github.com/voxpost/voxpost/pkg/logger"
	"go.uber.org/fx"
)

// Adapter is one platform integration behind the publisher registry.
type Adapter interface {
	Platform() domain.Platform
	Publish(ctx context.Context, draft *domain.DraftPost) error
	Authenticated() bool
}

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type Impl struct {
	adapters map[domain.Platform]Adapter
	limiter  ratelimit.Limiter
	logger   logger.Logger
}

func New(opts Opts) *Impl {
	log := opts.Logger.WithComponent("Publisher")

	impl := &Impl{
		adapters: make(map[domain.Platform]Adapter),
		limiter:  ratelimit.NewInMemoryLimiter(1, 2*time.Second, 3),
		logger:   log,
	}

	impl.register(newTelegramAdapter(opts.Config, log))
	impl.register(newTwitterAdapter(opts.Config, log))
	impl.register(newInstagramAdapter(opts.Config, log))

	return impl
}

var _ publisher.Client = (*Impl)(nil)

func (p *Impl) register(a Adapter) {
	p.adapters[a.Platform()] = a
}

func (p *Impl) Publish(ctx context.Context, platform domain.Platform, draft *domain.DraftPost) error {
	adapter, ok := p.adapters[platform]
	if !ok {
		return fmt.Errorf("%w: %s", publisher.ErrPlatformUnavailable, platform)
	}
	if !adapter.Authenticated() {
		return fmt.Errorf("%w: %s", publisher.ErrNotAuthenticated, platform)
	}
	if domain.CapabilitiesOf(platform).RequiresMedia && len(draft.Content.Media) == 0 {
		return fmt.Errorf("%w: %s", publisher.ErrMediaRequired, platform)
	}

	if err := p.limiter.Wait(ctx, platform); err != nil {
		return fmt.Errorf("%w: %v", publisher.ErrPublishFailed, err)
	}

	p.logger.Info("Publishing draft", "platform", platform, "draft_id", draft.ID)
	if err := adapter.Publish(ctx, draft); err != nil {
		p.logger.Error("Publish failed", "platform", platform, "draft_id", draft.ID, "error", err)
		return fmt.Errorf("%w: %s: %v", publisher.ErrPublishFailed, platform, err)
	}

	p.logger.Info("Published draft", "platform", platform, "draft_id", draft.ID)
	return nil
}

func (p *Impl) IsAuthenticated(platform domain.Platform) bool {
	adapter, ok := p.adapters[platform]
	return ok && adapter.Authenticated()
}
