package publisherimpl

import (
	"context"
	"os"

	"github.com/drswork/go-twitter/twitter"
	"github.com/dghubble/oauth1"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/pkg/config"
	apperrors "github.com/voxpost/voxpost/pkg/errors"
	"github.com/voxpost/voxpost/pkg/formatter"
	"github.com/voxpost/voxpost/pkg/logger"
)

type twitterAdapter struct {
	client *twitter.Client
	logger logger.Logger
}

func newTwitterAdapter(cfg *config.Config, log logger.Logger) *twitterAdapter {
	a := &twitterAdapter{logger: log.WithComponent("TwitterPublisher")}

	tw := cfg.Twitter
	if tw.ConsumerKey == "" || tw.ConsumerSecret == "" || tw.AccessToken == "" || tw.AccessSecret == "" {
		return a
	}

	oauthConfig := oauth1.NewConfig(tw.ConsumerKey, tw.ConsumerSecret)
	token := oauth1.NewToken(tw.AccessToken, tw.AccessSecret)
	httpClient := oauthConfig.Client(context.Background(), token)
	a.client = twitter.NewClient(httpClient)
	return a
}

var _ Adapter = (*twitterAdapter)(nil)

func (a *twitterAdapter) Platform() domain.Platform { return domain.PlatformTwitter }

func (a *twitterAdapter) Authenticated() bool { return a.client != nil }

func (a *twitterAdapter) Publish(ctx context.Context, draft *domain.DraftPost) error {
	status := formatter.ComposeCaption(draft.Content)
	status = formatter.TruncateRunes(status, domain.CapabilitiesOf(domain.PlatformTwitter).MaxTextLen)

	// Tweets carry at most four media attachments.
	media := draft.Content.Media
	if len(media) > 4 {
		media = media[:4]
	}

	var mediaIDs []int64
	for _, item := range media {
		id, err := a.uploadMedia(item)
		if err != nil {
			return err
		}
		mediaIDs = append(mediaIDs, id)
	}

	params := &twitter.StatusUpdateParams{}
	if len(mediaIDs) > 0 {
		params.MediaIds = mediaIDs
	}

	tweet, _, err := a.client.Statuses.Update(status, params)
	if err != nil {
		return apperrors.Wrap(err, "post tweet")
	}

	a.logger.Info("Tweet posted", "tweet_id", tweet.ID, "draft_id", draft.ID)
	return nil
}

func (a *twitterAdapter) uploadMedia(item domain.MediaItem) (int64, error) {
	data, err := os.ReadFile(item.FileURI)
	if err != nil {
		return 0, apperrors.Wrap(err, "read media file")
	}

	uploaded, _, err := a.client.Media.Upload(data, item.MimeType)
	if err != nil {
		return 0, apperrors.Wrap(err, "upload tweet media")
	}
	return uploaded.MediaID, nil
}
