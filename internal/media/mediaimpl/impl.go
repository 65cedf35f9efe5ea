package mediaimpl

import (
	"context"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/samber/lo"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/internal/media"
	"github.com/voxpost/voxpost/internal/repositories/source"
	"github.com/voxpost/voxpost/pkg/config"
	"github.com/voxpost/voxpost/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	LC         fx.Lifecycle
	SourceRepo source.Repository
	Logger     logger.Logger
	Config     *config.Config
}

type Impl struct {
	sourceRepo      source.Repository
	logger          logger.Logger
	defaultAlbumDir string

	mu            sync.RWMutex
	sources       []source.Source
	customEnabled bool
}

func New(opts Opts) *Impl {
	impl := &Impl{
		sourceRepo:      opts.SourceRepo,
		logger:          opts.Logger.WithComponent("MediaCoordinator"),
		defaultAlbumDir: opts.Config.Media.DefaultAlbumDir,
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			impl.loadRegistry(ctx)
			return nil
		},
	})

	return impl
}

var _ media.Coordinator = (*Impl)(nil)

// loadRegistry hydrates the in-memory registry from the durable store. The
// store is best-effort here: an unreachable store leaves an empty registry
// rather than blocking the pipeline.
func (m *Impl) loadRegistry(ctx context.Context) {
	sources, err := m.sourceRepo.List(ctx)
	if err != nil {
		m.logger.Warn("Failed to load media sources, starting with empty registry", "error", err)
		return
	}
	enabled, err := m.sourceRepo.CustomSourcesEnabled(ctx)
	if err != nil {
		m.logger.Warn("Failed to load custom-sources flag", "error", err)
	}

	m.mu.Lock()
	m.sources = sources
	m.customEnabled = enabled
	m.mu.Unlock()
}

// ResolveCandidates scans the active roots and returns matching media,
// newest first, deduplicated by resolved path.
func (m *Impl) ResolveCandidates(ctx context.Context, q domain.MediaQuery) ([]domain.MediaItem, error) {
	roots := m.activeRoots(q)

	var items []domain.MediaItem
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := m.scanRoot(root, q)
		if err != nil {
			m.logger.Warn("Skipping unreadable media source", "path", root, "error", err)
			continue
		}
		items = append(items, found...)
	}

	items = lo.UniqBy(items, func(item domain.MediaItem) string {
		return item.FileURI
	})

	// A scoped query keeps the source's natural order; otherwise the
	// default ordering is most recently created first.
	if q.DirectoryScope == "" {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Metadata.CreatedAt.After(items[j].Metadata.CreatedAt)
		})
	}

	return items, nil
}

func (m *Impl) activeRoots(q domain.MediaQuery) []string {
	if q.DirectoryScope != "" {
		return []string{q.DirectoryScope}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.customEnabled {
		return []string{m.defaultAlbumDir}
	}

	var roots []string
	for _, s := range m.sources {
		if s.Enabled {
			roots = append(roots, s.Path)
		}
	}
	return roots
}

func (m *Impl) scanRoot(root string, q domain.MediaQuery) ([]domain.MediaItem, error) {
	var items []domain.MediaItem

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchesTerms(d.Name(), q.SearchTerms) {
			return nil
		}

		item, ok := m.describe(path)
		if !ok {
			return nil
		}
		if !matchesType(item, q.MediaTypes) {
			return nil
		}
		if q.DateRange != nil {
			created := item.Metadata.CreatedAt
			if created.Before(q.DateRange.Start) || created.After(q.DateRange.End) {
				return nil
			}
		}

		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// describe sniffs a file and builds an enriched MediaItem; non-media files
// report ok=false.
func (m *Impl) describe(path string) (domain.MediaItem, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	f, err := os.Open(abs)
	if err != nil {
		return domain.MediaItem{}, false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return domain.MediaItem{}, false
	}

	head := make([]byte, 261)
	n, _ := f.Read(head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == types.Unknown {
		return domain.MediaItem{}, false
	}
	if kind.MIME.Type != "image" && kind.MIME.Type != "video" {
		return domain.MediaItem{}, false
	}

	item := domain.MediaItem{
		FileURI:  abs,
		MimeType: kind.MIME.Value,
		Metadata: domain.DeviceMetadata{
			CreatedAt: info.ModTime(),
			ByteSize:  info.Size(),
		},
	}

	if kind.MIME.Type == "image" {
		if _, err := f.Seek(0, 0); err == nil {
			if cfg, _, err := image.DecodeConfig(f); err == nil {
				item.Metadata.Width = cfg.Width
				item.Metadata.Height = cfg.Height
			}
		}
	}

	return item, true
}

func matchesTerms(name string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func matchesType(item domain.MediaItem, mediaTypes []domain.MediaType) bool {
	if len(mediaTypes) == 0 {
		return true
	}
	for _, mt := range mediaTypes {
		switch mt {
		case domain.MediaTypeImage:
			if strings.HasPrefix(item.MimeType, "image/") {
				return true
			}
		case domain.MediaTypeVideo:
			if strings.HasPrefix(item.MimeType, "video/") {
				return true
			}
		}
	}
	return false
}

// Validate checks existence and readability against the live filesystem.
func (m *Impl) Validate(_ context.Context, fileURI string) bool {
	f, err := os.Open(fileURI)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return true
}

// RecoverDraft drops stale media references from a draft. When everything
// was dropped and a media query is still present, the draft goes back to
// unresolved so the caller can re-run resolution. A draft with no media and
// no query has nothing to recover and yields nil.
func (m *Impl) RecoverDraft(ctx context.Context, d *domain.DraftPost) (*domain.DraftPost, error) {
	if d == nil {
		return nil, nil
	}
	if len(d.Content.Media) == 0 && d.MediaQuery.IsZero() {
		return nil, nil
	}

	out := d.Clone()

	var valid []domain.MediaItem
	for _, item := range out.Content.Media {
		if m.Validate(ctx, item.FileURI) {
			valid = append(valid, item)
		} else {
			m.logger.Info("Dropping stale media reference", "uri", item.FileURI)
		}
	}
	out.Content.Media = valid

	if len(valid) > 0 {
		// Resolution is complete; the query must not linger alongside
		// concrete media.
		out.MediaQuery = nil
	}

	return out, nil
}

// AddSource registers a new custom directory, enabled by default.
func (m *Impl) AddSource(ctx context.Context, displayName, path string) (*source.Source, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	s := source.Source{
		ID:          id,
		DisplayName: displayName,
		Path:        path,
		Enabled:     true,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.sources = append(m.sources, s)
	m.mu.Unlock()

	if err := m.sourceRepo.Create(ctx, s); err != nil {
		m.logger.Warn("Failed to persist media source", "id", id, "error", err)
	}
	return &s, nil
}

func (m *Impl) RemoveSource(ctx context.Context, id string) error {
	m.mu.Lock()
	found := false
	next := m.sources[:0]
	for _, s := range m.sources {
		if s.ID == id {
			found = true
			continue
		}
		next = append(next, s)
	}
	m.sources = next
	m.mu.Unlock()

	if !found {
		return source.ErrNotFound
	}

	if err := m.sourceRepo.Delete(ctx, id); err != nil {
		m.logger.Warn("Failed to delete media source", "id", id, "error", err)
	}
	return nil
}

func (m *Impl) SetSourceEnabled(ctx context.Context, id string, enabled bool) error {
	m.mu.Lock()
	found := false
	for i := range m.sources {
		if m.sources[i].ID == id {
			m.sources[i].Enabled = enabled
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return source.ErrNotFound
	}

	if err := m.sourceRepo.SetEnabled(ctx, id, enabled); err != nil {
		m.logger.Warn("Failed to persist source toggle", "id", id, "error", err)
	}
	return nil
}

// SetCustomSourcesEnabled flips the resolution strategy between the
// registered directories and the platform default album.
func (m *Impl) SetCustomSourcesEnabled(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	m.customEnabled = enabled
	m.mu.Unlock()

	if err := m.sourceRepo.SetCustomSourcesEnabled(ctx, enabled); err != nil {
		m.logger.Warn("Failed to persist custom-sources flag", "error", err)
	}
	return nil
}

func (m *Impl) ListSources(_ context.Context) []source.Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]source.Source(nil), m.sources...)
}
