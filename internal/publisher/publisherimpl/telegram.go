package publisherimpl

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/pkg/config"
	apperrors "github.com/voxpost/voxpost/pkg/errors"
	"github.com/voxpost/voxpost/pkg/formatter"
	"github.com/voxpost/voxpost/pkg/logger"
)

type telegramAdapter struct {
	bot     *tgbotapi.BotAPI
	channel int64
	logger  logger.Logger
}

func newTelegramAdapter(cfg *config.Config, log logger.Logger) *telegramAdapter {
	a := &telegramAdapter{
		channel: cfg.Telegram.Channel,
		logger:  log.WithComponent("TelegramPublisher"),
	}
	if cfg.Telegram.BotToken == "" {
		return a
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		a.logger.Warn("Telegram bot unavailable", "error", err)
		return a
	}
	a.bot = bot
	return a
}

var _ Adapter = (*telegramAdapter)(nil)

func (a *telegramAdapter) Platform() domain.Platform { return domain.PlatformTelegram }

func (a *telegramAdapter) Authenticated() bool {
	return a.bot != nil && a.channel != 0
}

func (a *telegramAdapter) Publish(ctx context.Context, draft *domain.DraftPost) error {
	caption := formatter.ComposeCaption(draft.Content)
	caption = formatter.TruncateRunes(caption, domain.CapabilitiesOf(domain.PlatformTelegram).MaxTextLen)

	media := draft.Content.Media
	switch {
	case len(media) == 0:
		msg := tgbotapi.NewMessage(a.channel, caption)
		_, err := a.bot.Send(msg)
		return err

	case len(media) == 1:
		return a.sendSingle(media[0], caption)

	default:
		return a.sendGroup(media, caption)
	}
}

func (a *telegramAdapter) sendSingle(item domain.MediaItem, caption string) error {
	file := tgbotapi.FilePath(item.FileURI)

	if strings.HasPrefix(item.MimeType, "video/") {
		msg := tgbotapi.NewVideo(a.channel, file)
		msg.Caption = caption
		_, err := a.bot.Send(msg)
		return err
	}

	msg := tgbotapi.NewPhoto(a.channel, file)
	msg.Caption = caption
	_, err := a.bot.Send(msg)
	return err
}

func (a *telegramAdapter) sendGroup(media []domain.MediaItem, caption string) error {
	// Telegram caps a media group at 10 items; the caption rides on the first.
	if len(media) > 10 {
		media = media[:10]
	}

	group := make([]interface{}, 0, len(media))
	for i, item := range media {
		file := tgbotapi.FilePath(item.FileURI)
		if strings.HasPrefix(item.MimeType, "video/") {
			v := tgbotapi.NewInputMediaVideo(file)
			if i == 0 {
				v.Caption = caption
			}
			group = append(group, v)
		} else {
			p := tgbotapi.NewInputMediaPhoto(file)
			if i == 0 {
				p.Caption = caption
			}
			group = append(group, p)
		}
	}

	if _, err := a.bot.SendMediaGroup(tgbotapi.NewMediaGroup(a.channel, group)); err != nil {
		return apperrors.Wrap(err, "send media group")
	}
	return nil
}
