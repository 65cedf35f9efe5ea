package transcriberimpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxpost/voxpost/internal/transcriber"
	"github.com/voxpost/voxpost/pkg/config"
	"github.com/voxpost/voxpost/pkg/logger"
	"github.com/voxpost/voxpost/pkg/retry"
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
	client *http.Client
	logger logger.Logger
}

func New(opts Opts) *Impl {
	timeout := time.Duration(opts.Config.Transcriber.TimeoutSeconds) * time.Second
	return &Impl{
		url:    opts.Config.Transcriber.URL,
		apiKey: opts.Config.Transcriber.APIKey,
		client: &http.Client{Timeout: timeout},
		logger: opts.Logger.WithComponent("Transcriber"),
	}
}

var _ transcriber.Client = (*Impl)(nil)

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio asset and returns the recognized text.
// Transient failures are retried with backoff; the asset is re-read on every
// attempt so a retry never sends a drained body.
func (t *Impl) Transcribe(ctx context.Context, audioPath string) (string, error) {
	var text string

	operation := func() error {
		body, contentType, err := t.buildBody(audioPath)
		if err != nil {
			return retry.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, body)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		if t.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+t.apiKey)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("transcription service returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return retry.Permanent(fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, payload))
		}

		var parsed transcribeResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return retry.Permanent(err)
		}
		text = strings.TrimSpace(parsed.Text)
		return nil
	}

	err := retry.Do(ctx, t.logger, "transcribe", operation, retry.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("%w: %v", transcriber.ErrTranscriptionFailed, err)
	}
	if text == "" {
		return "", transcriber.ErrEmptyTranscription
	}
	return text, nil
}

func (t *Impl) buildBody(audioPath string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}
