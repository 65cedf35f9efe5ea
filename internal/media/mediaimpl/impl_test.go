package mediaimpl

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/internal/repositories/source"
	"github.com/voxpost/voxpost/pkg/config"
	"github.com/voxpost/voxpost/pkg/logger"
	"go.uber.org/fx/fxtest"
)

var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	mp4Header  = []byte{
		0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
		0x00, 0x00, 0x00, 0x00, 'i', 's', 'o', 'm', 'a', 'v', 'c', '1',
	}
)

type fakeSourceRepo struct {
	mu            sync.Mutex
	sources       map[string]source.Source
	customEnabled bool
}

func newFakeSourceRepo() *fakeSourceRepo {
	return &fakeSourceRepo{sources: make(map[string]source.Source)}
}

func (r *fakeSourceRepo) Create(_ context.Context, s source.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID] = s
	return nil
}

func (r *fakeSourceRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, id)
	return nil
}

func (r *fakeSourceRepo) SetEnabled(_ context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sources[id]
	s.Enabled = enabled
	r.sources[id] = s
	return nil
}

func (r *fakeSourceRepo) List(_ context.Context) ([]source.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []source.Source
	for _, s := range r.sources {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSourceRepo) CustomSourcesEnabled(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.customEnabled, nil
}

func (r *fakeSourceRepo) SetCustomSourcesEnabled(_ context.Context, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customEnabled = enabled
	return nil
}

func writeFile(t *testing.T, dir, name string, content []byte, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("abs %s: %v", name, err)
	}
	return abs
}

func newTestImpl(t *testing.T, albumDir string) *Impl {
	t.Helper()
	cfg := &config.Config{}
	cfg.Media.DefaultAlbumDir = albumDir
	lc := fxtest.NewLifecycle(t)
	impl := New(Opts{
		LC:         lc,
		SourceRepo: newFakeSourceRepo(),
		Logger:     logger.New(logger.Opts{}),
		Config:     cfg,
	})
	lc.RequireStart()
	return impl
}

func TestLifecycleStartHydratesRegistry(t *testing.T) {
	t.Parallel()

	repo := newFakeSourceRepo()
	repo.customEnabled = true
	repo.sources["s1"] = source.Source{
		ID:          "s1",
		DisplayName: "Camera Roll",
		Path:        t.TempDir(),
		Enabled:     true,
		CreatedAt:   time.Now(),
	}

	cfg := &config.Config{}
	cfg.Media.DefaultAlbumDir = t.TempDir()

	lc := fxtest.NewLifecycle(t)
	impl := New(Opts{
		LC:         lc,
		SourceRepo: repo,
		Logger:     logger.New(logger.Opts{}),
		Config:     cfg,
	})

	if got := impl.ListSources(context.Background()); len(got) != 0 {
		t.Fatalf("registry must stay empty before start, got %d sources", len(got))
	}

	lc.RequireStart()

	got := impl.ListSources(context.Background())
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("expected the persisted source after start, got %+v", got)
	}
}

func TestResolveCandidatesBrowseModeNewestFirst(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	old := writeFile(t, album, "beach.jpg", jpegHeader, time.Now().Add(-2*time.Hour))
	recent := writeFile(t, album, "lunch.jpg", jpegHeader, time.Now().Add(-time.Minute))
	writeFile(t, album, "notes.txt", []byte("not media"), time.Time{})

	impl := newTestImpl(t, album)

	items, err := impl.ResolveCandidates(context.Background(), domain.MediaQuery{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(items))
	}
	if items[0].FileURI != recent || items[1].FileURI != old {
		t.Fatalf("expected newest first, got %v then %v", items[0].FileURI, items[1].FileURI)
	}
	if items[0].MimeType != "image/jpeg" {
		t.Fatalf("unexpected mime type: %s", items[0].MimeType)
	}
	if items[0].Metadata.ByteSize == 0 {
		t.Fatal("expected byte size metadata")
	}
}

func TestResolveCandidatesTermAndTypeFilters(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	lunchJpg := writeFile(t, album, "Lunch-Sandwich.jpg", jpegHeader, time.Time{})
	writeFile(t, album, "holiday.png", pngHeader, time.Time{})
	lunchMp4 := writeFile(t, album, "lunch-clip.mp4", mp4Header, time.Time{})

	impl := newTestImpl(t, album)

	items, err := impl.ResolveCandidates(context.Background(), domain.MediaQuery{
		SearchTerms: []string{"lunch"},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 lunch matches, got %d", len(items))
	}

	images, err := impl.ResolveCandidates(context.Background(), domain.MediaQuery{
		SearchTerms: []string{"lunch"},
		MediaTypes:  []domain.MediaType{domain.MediaTypeImage},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(images) != 1 || images[0].FileURI != lunchJpg {
		t.Fatalf("expected only the jpeg, got %v", images)
	}

	videos, err := impl.ResolveCandidates(context.Background(), domain.MediaQuery{
		MediaTypes: []domain.MediaType{domain.MediaTypeVideo},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(videos) != 1 || videos[0].FileURI != lunchMp4 {
		t.Fatalf("expected only the mp4, got %v", videos)
	}
}

func TestResolveCandidatesDateRange(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	inRange := writeFile(t, album, "a.jpg", jpegHeader, time.Now().Add(-24*time.Hour))
	writeFile(t, album, "b.jpg", jpegHeader, time.Now().Add(-30*24*time.Hour))

	impl := newTestImpl(t, album)

	items, err := impl.ResolveCandidates(context.Background(), domain.MediaQuery{
		DateRange: &domain.DateRange{
			Start: time.Now().Add(-48 * time.Hour),
			End:   time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(items) != 1 || items[0].FileURI != inRange {
		t.Fatalf("expected only the recent file, got %v", items)
	}
}

func TestResolveCandidatesZeroMatchesIsNotAnError(t *testing.T) {
	t.Parallel()

	impl := newTestImpl(t, t.TempDir())

	items, err := impl.ResolveCandidates(context.Background(), domain.MediaQuery{
		SearchTerms: []string{"nothing-matches-this"},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no candidates, got %d", len(items))
	}
}

func TestResolveCandidatesCustomSourcesAndDedupe(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	writeFile(t, album, "default.jpg", jpegHeader, time.Time{})
	custom := t.TempDir()
	customFile := writeFile(t, custom, "custom.jpg", jpegHeader, time.Time{})

	impl := newTestImpl(t, album)
	ctx := context.Background()

	// Register the same directory twice; dedupe must collapse the overlap.
	if _, err := impl.AddSource(ctx, "Camera", custom); err != nil {
		t.Fatalf("add source failed: %v", err)
	}
	dup, err := impl.AddSource(ctx, "Camera again", custom)
	if err != nil {
		t.Fatalf("add source failed: %v", err)
	}
	if err := impl.SetCustomSourcesEnabled(ctx, true); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	items, err := impl.ResolveCandidates(ctx, domain.MediaQuery{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(items) != 1 || items[0].FileURI != customFile {
		t.Fatalf("expected the deduped custom file only, got %v", items)
	}

	// Disabling one copy still leaves the other enabled.
	if err := impl.SetSourceEnabled(ctx, dup.ID, false); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	items, err = impl.ResolveCandidates(ctx, domain.MediaQuery{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(items))
	}

	// Back to the default album strategy.
	if err := impl.SetCustomSourcesEnabled(ctx, false); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	items, err = impl.ResolveCandidates(ctx, domain.MediaQuery{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(items) != 1 || filepath.Base(items[0].FileURI) != "default.jpg" {
		t.Fatalf("expected the default album file, got %v", items)
	}
}

func TestResolveCandidatesDirectoryScope(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	writeFile(t, album, "default.jpg", jpegHeader, time.Time{})
	scoped := t.TempDir()
	scopedFile := writeFile(t, scoped, "scoped.jpg", jpegHeader, time.Time{})

	impl := newTestImpl(t, album)

	items, err := impl.ResolveCandidates(context.Background(), domain.MediaQuery{
		DirectoryScope: scoped,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(items) != 1 || items[0].FileURI != scopedFile {
		t.Fatalf("expected only the scoped file, got %v", items)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	path := writeFile(t, album, "a.jpg", jpegHeader, time.Time{})
	impl := newTestImpl(t, album)
	ctx := context.Background()

	if !impl.Validate(ctx, path) {
		t.Fatal("expected existing file to validate")
	}
	if impl.Validate(ctx, filepath.Join(album, "gone.jpg")) {
		t.Fatal("expected missing file to fail validation")
	}
	if impl.Validate(ctx, album) {
		t.Fatal("expected directory to fail validation")
	}
}

func TestRecoverDraftDropsStaleMedia(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	alive := writeFile(t, album, "alive.jpg", jpegHeader, time.Time{})
	stale := writeFile(t, album, "stale.jpg", jpegHeader, time.Time{})
	if err := os.Remove(stale); err != nil {
		t.Fatalf("remove: %v", err)
	}

	impl := newTestImpl(t, album)

	d := &domain.DraftPost{
		ID: "d1",
		Content: domain.Content{
			Text: "lunch",
			Media: []domain.MediaItem{
				{FileURI: alive},
				{FileURI: stale},
			},
		},
		MediaQuery: &domain.MediaQuery{SearchTerms: []string{"lunch"}},
	}

	out, err := impl.RecoverDraft(context.Background(), d)
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if len(out.Content.Media) != 1 || out.Content.Media[0].FileURI != alive {
		t.Fatalf("expected only the alive item, got %v", out.Content.Media)
	}
	if out.MediaQuery != nil {
		t.Fatal("query must be cleared once valid media remains")
	}
	if len(d.Content.Media) != 2 {
		t.Fatal("recovery must not mutate the input draft")
	}
}

func TestRecoverDraftAllStaleReturnsToUnresolved(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	stale := writeFile(t, album, "stale.jpg", jpegHeader, time.Time{})
	if err := os.Remove(stale); err != nil {
		t.Fatalf("remove: %v", err)
	}

	impl := newTestImpl(t, album)

	d := &domain.DraftPost{
		ID:         "d1",
		Content:    domain.Content{Media: []domain.MediaItem{{FileURI: stale}}},
		MediaQuery: &domain.MediaQuery{SearchTerms: []string{"lunch"}},
	}

	out, err := impl.RecoverDraft(context.Background(), d)
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if len(out.Content.Media) != 0 {
		t.Fatal("stale media must be dropped")
	}
	if out.MediaQuery == nil {
		t.Fatal("draft must return to unresolved, not publish with zero media")
	}
	if out.IsResolved() {
		t.Fatal("draft should be unresolved after losing all media")
	}
}

func TestRecoverDraftNothingToRecover(t *testing.T) {
	t.Parallel()

	impl := newTestImpl(t, t.TempDir())

	out, err := impl.RecoverDraft(context.Background(), &domain.DraftPost{
		ID:      "d1",
		Content: domain.Content{Text: "just text"},
	})
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if out != nil {
		t.Fatal("expected nil for a draft with nothing to recover")
	}
}

func TestRecoverDraftIsIdempotent(t *testing.T) {
	t.Parallel()

	album := t.TempDir()
	alive := writeFile(t, album, "alive.jpg", jpegHeader, time.Time{})

	impl := newTestImpl(t, album)
	ctx := context.Background()

	d := &domain.DraftPost{
		ID:         "d1",
		Content:    domain.Content{Media: []domain.MediaItem{{FileURI: alive}}},
		MediaQuery: &domain.MediaQuery{SearchTerms: []string{"x"}},
	}

	once, err := impl.RecoverDraft(ctx, d)
	if err != nil {
		t.Fatalf("first recover failed: %v", err)
	}
	twice, err := impl.RecoverDraft(ctx, once)
	if err != nil {
		t.Fatalf("second recover failed: %v", err)
	}

	if len(once.Content.Media) != len(twice.Content.Media) {
		t.Fatal("recover must be idempotent on media")
	}
	if (once.MediaQuery == nil) != (twice.MediaQuery == nil) {
		t.Fatal("recover must be idempotent on the query")
	}
}
