package coordinatorimpl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxpost/voxpost/internal/coordinator"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/internal/publisher"
	"github.com/voxpost/voxpost/internal/repositories/draft"
	"github.com/voxpost/voxpost/pkg/logger"
	"github.com/voxpost/voxpost/pkg/retry"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	DraftRepo draft.Repository
	Publisher publisher.Client
	Logger    logger.Logger
}

// Impl owns the single active draft. Every mutation runs under one mutex;
// observers only ever see deep copies.
type Impl struct {
	draftRepo draft.Repository
	publisher publisher.Client
	logger    logger.Logger

	mu         sync.Mutex
	draft      *domain.DraftPost
	succeeded  map[domain.Platform]bool
	publishing bool

	subMu       sync.Mutex
	subscribers []chan *domain.DraftPost
}

func New(opts Opts) *Impl {
	return &Impl{
		draftRepo: opts.DraftRepo,
		publisher: opts.Publisher,
		logger:    opts.Logger.WithComponent("PostCoordinator"),
		succeeded: make(map[domain.Platform]bool),
	}
}

var _ coordinator.Client = (*Impl)(nil)

func (c *Impl) Adopt(ctx context.Context, d *domain.DraftPost) error {
	if d == nil {
		return coordinator.ErrNoActiveDraft
	}

	status := domain.StatusDraft
	if d.Options.Schedule != domain.ScheduleNow && d.Options.Schedule != "" {
		status = domain.StatusScheduled
	}
	if err := c.draftRepo.Save(ctx, d, status); err != nil {
		c.logger.Warn("Failed to persist adopted draft", "draft_id", d.ID, "error", err)
	}

	c.install(d)
	return nil
}

func (c *Impl) SyncWithExisting(ctx context.Context, d *domain.DraftPost) error {
	if d == nil {
		return coordinator.ErrNoActiveDraft
	}
	c.install(d)
	return nil
}

func (c *Impl) install(d *domain.DraftPost) {
	c.mu.Lock()
	c.draft = d.Clone()
	c.succeeded = make(map[domain.Platform]bool)
	c.publishing = false
	snapshot := c.draft.Clone()
	c.mu.Unlock()

	c.notify(snapshot)
}

func (c *Impl) UpdateContent(ctx context.Context, text string, opts ...coordinator.ContentOption) error {
	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return coordinator.ErrNoActiveDraft
	}

	c.draft.Content.Text = text
	for _, opt := range opts {
		opt(&c.draft.Content)
	}
	snapshot := c.draft.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.notify(snapshot)
	return nil
}

func (c *Impl) UpdateSchedule(ctx context.Context, schedule string) error {
	status := domain.StatusDraft
	if schedule != domain.ScheduleNow {
		at, err := time.Parse(time.RFC3339, schedule)
		if err != nil {
			return fmt.Errorf("%w: %v", coordinator.ErrInvalidSchedule, err)
		}
		if at.Before(time.Now()) {
			return fmt.Errorf("%w: %s is in the past", coordinator.ErrInvalidSchedule, schedule)
		}
		status = domain.StatusScheduled
	}

	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return coordinator.ErrNoActiveDraft
	}
	c.draft.Options.Schedule = schedule
	snapshot := c.draft.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	if err := c.draftRepo.SetStatus(ctx, snapshot.ID, status); err != nil {
		c.logger.Warn("Failed to persist schedule status", "draft_id", snapshot.ID, "error", err)
	}
	c.notify(snapshot)
	return nil
}

func (c *Impl) ReplaceMedia(ctx context.Context, items []domain.MediaItem) error {
	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return coordinator.ErrNoActiveDraft
	}

	c.draft.Content.Media = append([]domain.MediaItem(nil), items...)
	if len(items) > 0 {
		c.draft.MediaQuery = nil
	}
	snapshot := c.draft.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.notify(snapshot)
	return nil
}

func (c *Impl) TogglePlatform(ctx context.Context, p domain.Platform) error {
	if _, err := domain.ParsePlatform(string(p)); err != nil {
		return err
	}

	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return coordinator.ErrNoActiveDraft
	}

	if c.draft.HasPlatform(p) {
		kept := c.draft.Platforms[:0]
		for _, sel := range c.draft.Platforms {
			if sel != p {
				kept = append(kept, sel)
			}
		}
		c.draft.Platforms = kept
	} else {
		c.draft.Platforms = append(c.draft.Platforms, p)
	}
	snapshot := c.draft.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.notify(snapshot)
	return nil
}

func (c *Impl) ExecutionReadiness(ctx context.Context) domain.Readiness {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readinessLocked()
}

func (c *Impl) readinessLocked() domain.Readiness {
	var missing []string

	if c.draft == nil {
		return domain.Readiness{MissingRequirements: []string{"no active draft"}}
	}
	if len(c.draft.Platforms) == 0 {
		missing = append(missing, "no platform selected")
	}
	if c.draft.Content.Text == "" && len(c.draft.Content.Media) == 0 {
		missing = append(missing, "post has no text or media")
	}
	if !c.draft.IsResolved() {
		missing = append(missing, "media request not resolved yet")
	}
	for _, p := range c.draft.Platforms {
		if !c.publisher.IsAuthenticated(p) {
			missing = append(missing, fmt.Sprintf("%s account not connected", p))
		}
		if domain.CapabilitiesOf(p).RequiresMedia && len(c.draft.Content.Media) == 0 {
			missing = append(missing, fmt.Sprintf("%s requires media", p))
		}
	}

	return domain.Readiness{IsReady: len(missing) == 0, MissingRequirements: missing}
}

func (c *Impl) FinalizeAndExecutePost(ctx context.Context) (map[domain.Platform]bool, error) {
	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return nil, coordinator.ErrNoActiveDraft
	}
	if c.publishing {
		c.mu.Unlock()
		return nil, coordinator.ErrAlreadyInProgress
	}
	if r := c.readinessLocked(); !r.IsReady {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", coordinator.ErrNotReady, r.MissingRequirements)
	}

	c.publishing = true
	snapshot := c.draft.Clone()

	// Platforms that already succeeded on a previous attempt are not
	// published again.
	var targets []domain.Platform
	results := make(map[domain.Platform]bool, len(snapshot.Platforms))
	for _, p := range snapshot.Platforms {
		if c.succeeded[p] {
			results[p] = true
			continue
		}
		targets = append(targets, p)
	}
	c.mu.Unlock()

	type outcome struct {
		platform domain.Platform
		err      error
	}

	outcomes := make(chan outcome, len(targets))
	var wg sync.WaitGroup
	for _, p := range targets {
		wg.Add(1)
		go func(p domain.Platform) {
			defer wg.Done()
			outcomes <- outcome{platform: p, err: c.publisher.Publish(ctx, p, snapshot)}
		}(p)
	}
	wg.Wait()
	close(outcomes)

	var failures []outcome
	for o := range outcomes {
		results[o.platform] = o.err == nil
		if o.err != nil {
			failures = append(failures, o)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishing = false

	for p, ok := range results {
		if ok {
			c.succeeded[p] = true
		}
	}

	if len(failures) == 0 {
		c.setTerminalStatus(ctx, snapshot.ID, domain.StatusPosted)
		c.logger.Info("Draft published to all platforms", "draft_id", snapshot.ID)
		c.resetLocked()
		return results, nil
	}

	for _, o := range failures {
		entry := domain.ErrorLogEntry{At: time.Now(), Platform: o.platform, Message: o.err.Error()}
		if err := c.draftRepo.AppendErrorLog(ctx, snapshot.ID, entry); err != nil {
			c.logger.Warn("Failed to append error log", "draft_id", snapshot.ID, "error", err)
		}
	}
	c.setTerminalStatus(ctx, snapshot.ID, domain.StatusFailed)

	if c.draft != nil && c.draft.ID == snapshot.ID {
		c.draft.Internal.RetryCount++
	}
	c.logger.Warn("Draft publish partially failed",
		"draft_id", snapshot.ID, "failed_platforms", len(failures))
	return results, nil
}

// setTerminalStatus retries the durable status write; losing it would make
// the scheduler re-publish an already posted draft.
func (c *Impl) setTerminalStatus(ctx context.Context, id string, status domain.PostStatus) {
	err := retry.Do(ctx, c.logger, "set_draft_status", func() error {
		return c.draftRepo.SetStatus(ctx, id, status)
	}, retry.DefaultConfig())
	if err != nil {
		c.logger.Error("Failed to persist terminal status", "draft_id", id, "status", status, "error", err)
	}
}

func (c *Impl) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()

	c.notify(nil)
}

func (c *Impl) resetLocked() {
	c.draft = nil
	c.succeeded = make(map[domain.Platform]bool)
	c.publishing = false
}

func (c *Impl) Snapshot() *domain.DraftPost {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

func (c *Impl) Subscribe() <-chan *domain.DraftPost {
	ch := make(chan *domain.DraftPost, 16)
	c.subMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subMu.Unlock()
	return ch
}

// notify fans a snapshot out to observers. Slow observers lose updates
// rather than blocking the coordinator.
func (c *Impl) notify(snapshot *domain.DraftPost) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- snapshot.Clone():
		default:
		}
	}
}

// persist writes the current payload best-effort; a storage hiccup must not
// block the in-memory editing flow.
func (c *Impl) persist(ctx context.Context, snapshot *domain.DraftPost) {
	if err := c.draftRepo.Update(ctx, snapshot.ID, snapshot); err != nil {
		c.logger.Warn("Failed to persist draft update", "draft_id", snapshot.ID, "error", err)
	}
}
