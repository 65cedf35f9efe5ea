package parserimpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/voxpost/voxpost/internal/commandparser"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/pkg/config"
	"github.com/voxpost/voxpost/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type Impl struct {
	url    string
	apiKey string
	model  string
	client *http.Client
	logger logger.Logger
}

func New(opts Opts) *Impl {
	timeout := time.Duration(opts.Config.Parser.TimeoutSeconds) * time.Second
	return &Impl{
		url:    opts.Config.Parser.URL,
		apiKey: opts.Config.Parser.APIKey,
		model:  opts.Config.Parser.Model,
		client: &http.Client{Timeout: timeout},
		logger: opts.Logger.WithComponent("CommandParser"),
	}
}

var _ commandparser.Client = (*Impl)(nil)

type parseRequest struct {
	Transcript string `json:"transcript"`
	Model      string `json:"model"`
}

type parseResponse struct {
	Platforms []string `json:"platforms"`
	Text      string   `json:"text"`
	Hashtags  []string `json:"hashtags"`
	Mentions  []string `json:"mentions"`
	Link      string   `json:"link"`
	Schedule  string   `json:"schedule"`
	Location  string   `json:"location_tag"`

	MediaQuery *struct {
		SearchTerms    []string `json:"search_terms"`
		MediaTypes     []string `json:"media_types"`
		DirectoryScope string   `json:"directory_scope"`
	} `json:"media_query"`
}

// Parse sends the transcript to the language model endpoint and validates
// the structured result into a draft.
func (p *Impl) Parse(ctx context.Context, transcript string, preselected []domain.MediaItem) (*domain.DraftPost, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: empty transcript", commandparser.ErrParseFailed)
	}

	payload, err := json.Marshal(parseRequest{Transcript: transcript, Model: p.model})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commandparser.ErrParseFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commandparser.ErrParseFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commandparser.ErrParseFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: parser service returned %d: %s", commandparser.ErrParseFailed, resp.StatusCode, detail)
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", commandparser.ErrParseFailed, err)
	}

	return p.buildDraft(transcript, parsed, preselected)
}

func (p *Impl) buildDraft(transcript string, parsed parseResponse, preselected []domain.MediaItem) (*domain.DraftPost, error) {
	if len(parsed.Platforms) == 0 {
		return nil, fmt.Errorf("%w: no platforms in structured result", commandparser.ErrParseFailed)
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return nil, fmt.Errorf("%w: empty post text in structured result", commandparser.ErrParseFailed)
	}

	var platforms []domain.Platform
	for _, raw := range parsed.Platforms {
		platform, err := domain.ParsePlatform(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", commandparser.ErrParseFailed, err)
		}
		platforms = append(platforms, platform)
	}

	var hashtags []string
	for _, raw := range parsed.Hashtags {
		tag, err := domain.NormalizeHashtag(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hashtag %q", commandparser.ErrParseFailed, raw)
		}
		hashtags = append(hashtags, tag)
	}

	var mentions []string
	for _, raw := range parsed.Mentions {
		mention := strings.TrimPrefix(strings.TrimSpace(raw), "@")
		if mention != "" {
			mentions = append(mentions, mention)
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	schedule := parsed.Schedule
	if schedule == "" {
		schedule = domain.ScheduleNow
	}

	draft := &domain.DraftPost{
		ID:        id,
		CreatedAt: time.Now(),
		Platforms: platforms,
		Content: domain.Content{
			Text:     strings.TrimSpace(parsed.Text),
			Hashtags: hashtags,
			Mentions: mentions,
			Link:     strings.TrimSpace(parsed.Link),
			Media:    append([]domain.MediaItem(nil), preselected...),
		},
		Options: domain.Options{
			Schedule:    schedule,
			LocationTag: parsed.Location,
		},
		Internal: domain.Internal{
			OriginalTranscript: transcript,
			AIGenerated:        true,
		},
	}

	// A media query only survives when no media was preselected.
	if parsed.MediaQuery != nil && len(preselected) == 0 {
		query := &domain.MediaQuery{
			SearchTerms:    parsed.MediaQuery.SearchTerms,
			DirectoryScope: parsed.MediaQuery.DirectoryScope,
		}
		for _, raw := range parsed.MediaQuery.MediaTypes {
			switch strings.ToLower(raw) {
			case "image":
				query.MediaTypes = append(query.MediaTypes, domain.MediaTypeImage)
			case "video":
				query.MediaTypes = append(query.MediaTypes, domain.MediaTypeVideo)
			default:
				return nil, fmt.Errorf("%w: unknown media type %q", commandparser.ErrParseFailed, raw)
			}
		}
		if !query.IsZero() {
			draft.MediaQuery = query
		}
	}

	return draft, nil
}
