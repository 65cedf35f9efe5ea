package publisherimpl

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Davincible/goinsta/v3"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/pkg/config"
	apperrors "github.com/voxpost/voxpost/pkg/errors"
	"github.com/voxpost/voxpost/pkg/formatter"
	"github.com/voxpost/voxpost/pkg/logger"
)

type instagramAdapter struct {
	username    string
	password    string
	sessionPath string
	logger      logger.Logger

	mu       sync.Mutex
	client   *goinsta.Instagram
	loggedIn bool
}

func newInstagramAdapter(cfg *config.Config, log logger.Logger) *instagramAdapter {
	return &instagramAdapter{
		username:    cfg.Instagram.User,
		password:    cfg.Instagram.Pass,
		sessionPath: cfg.Instagram.SessionPath,
		logger:      log.WithComponent("InstagramPublisher"),
	}
}

var _ Adapter = (*instagramAdapter)(nil)

func (a *instagramAdapter) Platform() domain.Platform { return domain.PlatformInstagram }

func (a *instagramAdapter) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loggedIn || (a.username != "" && a.password != "")
}

// ensureLogin connects lazily on first publish: a saved session is preferred,
// falling back to a credential login whose session is exported for next time.
func (a *instagramAdapter) ensureLogin() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loggedIn {
		return nil
	}

	if a.sessionPath != "" {
		if _, err := os.Stat(a.sessionPath); err == nil {
			client, err := goinsta.Import(a.sessionPath)
			if err == nil {
				a.client = client
				a.loggedIn = true
				a.logger.Info("Instagram session restored", "path", a.sessionPath)
				return nil
			}
			a.logger.Warn("Saved Instagram session unusable, logging in fresh", "error", err)
		}
	}

	if a.username == "" || a.password == "" {
		return fmt.Errorf("instagram credentials not configured")
	}

	client := goinsta.New(a.username, a.password)
	if err := client.Login(); err != nil {
		return apperrors.WrapWithCode(err, "IG_LOGIN", "instagram login failed")
	}
	a.client = client
	a.loggedIn = true

	if a.sessionPath != "" {
		if err := client.Export(a.sessionPath); err != nil {
			a.logger.Warn("Failed to save Instagram session", "error", err)
		}
	}
	return nil
}

func (a *instagramAdapter) Publish(ctx context.Context, draft *domain.DraftPost) error {
	if len(draft.Content.Media) == 0 {
		return fmt.Errorf("instagram posts need at least one media item")
	}
	if err := a.ensureLogin(); err != nil {
		return err
	}

	caption := formatter.ComposeCaption(draft.Content)
	caption = formatter.TruncateRunes(caption, domain.CapabilitiesOf(domain.PlatformInstagram).MaxTextLen)

	readers := make([]io.Reader, 0, len(draft.Content.Media))
	files := make([]*os.File, 0, len(draft.Content.Media))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, item := range draft.Content.Media {
		f, err := os.Open(item.FileURI)
		if err != nil {
			return fmt.Errorf("open media %s: %w", item.FileURI, err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}

	options := &goinsta.UploadOptions{Caption: caption}
	if len(readers) == 1 {
		options.File = readers[0]
	} else {
		options.Album = readers
	}

	item, err := a.client.Upload(options)
	if err != nil {
		return apperrors.WrapWithCode(err, "IG_UPLOAD", "instagram upload failed")
	}

	a.logger.Info("Instagram post published", "media_id", item.ID, "draft_id", draft.ID)
	return nil
}
