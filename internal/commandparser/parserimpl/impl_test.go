package parserimpl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxpost/voxpost/internal/commandparser"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/pkg/config"
	"github.com/voxpost/voxpost/pkg/logger"
)

func newTestParser(t *testing.T, handler http.HandlerFunc) *Impl {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cfg.Parser.URL = server.URL
	cfg.Parser.APIKey = "test-key"
	cfg.Parser.Model = "test-model"
	cfg.Parser.TimeoutSeconds = 5

	return New(Opts{Config: cfg, Logger: logger.New(logger.Opts{})})
}

func respond(t *testing.T, w http.ResponseWriter, body map[string]any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestParseBuildsDraft(t *testing.T) {
	t.Parallel()

	parser := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req parseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Transcript != "post sunset photo to instagram" {
			t.Errorf("transcript = %q", req.Transcript)
		}
		respond(t, w, map[string]any{
			"platforms": []string{"instagram", "twitter"},
			"text":      "Golden hour at the beach",
			"hashtags":  []string{"#sunset", "photography"},
			"mentions":  []string{"@alex"},
			"link":      "https://example.com/gallery",
			"media_query": map[string]any{
				"search_terms": []string{"sunset"},
				"media_types":  []string{"image"},
			},
		})
	})

	draft, err := parser.Parse(context.Background(), "post sunset photo to instagram", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if draft.ID == "" {
		t.Error("draft ID is empty")
	}
	if len(draft.Platforms) != 2 || draft.Platforms[0] != domain.PlatformInstagram {
		t.Errorf("platforms = %v", draft.Platforms)
	}
	if draft.Content.Text != "Golden hour at the beach" {
		t.Errorf("text = %q", draft.Content.Text)
	}
	if len(draft.Content.Hashtags) != 2 || draft.Content.Hashtags[0] != "sunset" || draft.Content.Hashtags[1] != "photography" {
		t.Errorf("hashtags = %v", draft.Content.Hashtags)
	}
	if len(draft.Content.Mentions) != 1 || draft.Content.Mentions[0] != "alex" {
		t.Errorf("mentions = %v", draft.Content.Mentions)
	}
	if draft.Options.Schedule != domain.ScheduleNow {
		t.Errorf("schedule = %q, want %q", draft.Options.Schedule, domain.ScheduleNow)
	}
	if draft.MediaQuery == nil || len(draft.MediaQuery.SearchTerms) != 1 {
		t.Errorf("media query = %+v", draft.MediaQuery)
	}
	if !draft.Internal.AIGenerated {
		t.Error("draft not marked as generated")
	}
	if draft.Internal.OriginalTranscript != "post sunset photo to instagram" {
		t.Errorf("original transcript = %q", draft.Internal.OriginalTranscript)
	}
}

func TestParsePreselectedMediaSuppressesQuery(t *testing.T) {
	t.Parallel()

	parser := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, map[string]any{
			"platforms": []string{"telegram"},
			"text":      "Look at this",
			"media_query": map[string]any{
				"search_terms": []string{"dog"},
			},
		})
	})

	preselected := []domain.MediaItem{{FileURI: "/photos/dog.jpg", MimeType: "image/jpeg"}}
	draft, err := parser.Parse(context.Background(), "share this picture", preselected)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if draft.MediaQuery != nil {
		t.Errorf("media query should be suppressed, got %+v", draft.MediaQuery)
	}
	if len(draft.Content.Media) != 1 || draft.Content.Media[0].FileURI != "/photos/dog.jpg" {
		t.Errorf("media = %v", draft.Content.Media)
	}
}

func TestParseRejectsBadResults(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"no platforms", map[string]any{"platforms": []string{}, "text": "hi"}},
		{"unknown platform", map[string]any{"platforms": []string{"myspace"}, "text": "hi"}},
		{"empty text", map[string]any{"platforms": []string{"twitter"}, "text": "  "}},
		{"bad hashtag", map[string]any{"platforms": []string{"twitter"}, "text": "hi", "hashtags": []string{"two words"}}},
		{"bad media type", map[string]any{
			"platforms":   []string{"twitter"},
			"text":        "hi",
			"media_query": map[string]any{"media_types": []string{"hologram"}},
		}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			parser := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
				respond(t, w, tc.body)
			})
			if _, err := parser.Parse(context.Background(), "say something", nil); !errors.Is(err, commandparser.ErrParseFailed) {
				t.Errorf("err = %v, want ErrParseFailed", err)
			}
		})
	}
}

func TestParseServiceError(t *testing.T) {
	t.Parallel()

	parser := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	if _, err := parser.Parse(context.Background(), "anything", nil); !errors.Is(err, commandparser.ErrParseFailed) {
		t.Errorf("err = %v, want ErrParseFailed", err)
	}
}

func TestParseEmptyTranscript(t *testing.T) {
	t.Parallel()

	parser := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})

	if _, err := parser.Parse(context.Background(), "   ", nil); !errors.Is(err, commandparser.ErrParseFailed) {
		t.Errorf("err = %v, want ErrParseFailed", err)
	}
}
