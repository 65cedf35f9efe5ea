package transcriberimpl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/voxpost/voxpost/internal/transcriber"
	"github.com/voxpost/voxpost/pkg/config"
	"github.com/voxpost/voxpost/pkg/logger"
)

func newTestTranscriber(t *testing.T, handler http.HandlerFunc) *Impl {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cfg.Transcriber.URL = server.URL
	cfg.Transcriber.APIKey = "test-key"
	cfg.Transcriber.TimeoutSeconds = 5

	return New(Opts{Config: cfg, Logger: logger.New(logger.Opts{})})
}

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.m4a")
	if err := os.WriteFile(path, []byte("not real audio but enough"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribeReturnsText(t *testing.T) {
	t.Parallel()

	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("audio"); err != nil {
			t.Errorf("audio part missing: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "  hello world  "})
	})

	text, err := tr.Transcribe(context.Background(), writeAudioFixture(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want trimmed %q", text, "hello world")
	}
}

func TestTranscribeEmptyText(t *testing.T) {
	t.Parallel()

	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "   "})
	})

	if _, err := tr.Transcribe(context.Background(), writeAudioFixture(t)); !errors.Is(err, transcriber.ErrEmptyTranscription) {
		t.Errorf("err = %v, want ErrEmptyTranscription", err)
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "eventually fine"})
	})

	text, err := tr.Transcribe(context.Background(), writeAudioFixture(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "eventually fine" {
		t.Errorf("text = %q", text)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestTranscribeClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad audio format", http.StatusUnprocessableEntity)
	})

	if _, err := tr.Transcribe(context.Background(), writeAudioFixture(t)); !errors.Is(err, transcriber.ErrTranscriptionFailed) {
		t.Errorf("err = %v, want ErrTranscriptionFailed", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	t.Parallel()

	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})

	if _, err := tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "gone.m4a")); !errors.Is(err, transcriber.ErrTranscriptionFailed) {
		t.Errorf("err = %v, want ErrTranscriptionFailed", err)
	}
}
