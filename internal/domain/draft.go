package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidHashtag = errors.New("invalid hashtag")

// MediaType filters media resolution by kind.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// DeviceMetadata carries asset metadata captured at resolution time.
type DeviceMetadata struct {
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	DurationSec float64    `json:"duration_sec,omitempty"`
	Orientation int        `json:"orientation,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	ByteSize    int64      `json:"byte_size,omitempty"`
}

// MediaItem is a resolved asset reference. The FileURI can become stale at
// any time (deleted file, revoked permission) so validity is always checked
// against live storage, never assumed from this struct.
type MediaItem struct {
	FileURI  string         `json:"file_uri"`
	MimeType string         `json:"mime_type"`
	Metadata DeviceMetadata `json:"metadata"`
}

// DateRange bounds a media query by creation time.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MediaQuery is a structured, unresolved media request. It is present on a
// draft only while content media has not been resolved yet.
type MediaQuery struct {
	SearchTerms    []string    `json:"search_terms,omitempty"`
	MediaTypes     []MediaType `json:"media_types,omitempty"`
	DateRange      *DateRange  `json:"date_range,omitempty"`
	DirectoryScope string      `json:"directory_scope,omitempty"`
}

// IsZero reports whether the query requests nothing at all.
func (q *MediaQuery) IsZero() bool {
	return q == nil || (len(q.SearchTerms) == 0 && len(q.MediaTypes) == 0 &&
		q.DateRange == nil && q.DirectoryScope == "")
}

// Content holds the publishable body of a draft. Hashtags are stored
// without their leading '#'.
type Content struct {
	Text     string      `json:"text"`
	Hashtags []string    `json:"hashtags,omitempty"`
	Mentions []string    `json:"mentions,omitempty"`
	Link     string      `json:"link,omitempty"`
	Media    []MediaItem `json:"media,omitempty"`
}

// ScheduleNow is the schedule value meaning "publish immediately".
const ScheduleNow = "now"

// Options carries publish-time options.
type Options struct {
	Schedule    string              `json:"schedule"`
	LocationTag string              `json:"location_tag,omitempty"`
	Visibility  map[Platform]string `json:"visibility,omitempty"`
	ReplyTarget map[Platform]string `json:"reply_target,omitempty"`
}

// Internal holds bookkeeping fields never shown to the user.
type Internal struct {
	OriginalTranscript string `json:"original_transcript,omitempty"`
	AIGenerated        bool   `json:"ai_generated"`
	RetryCount         int    `json:"retry_count"`
}

// DraftPost is the canonical, mutable unit of work. The post coordinator is
// its sole in-memory owner; everyone else gets deep copies.
type DraftPost struct {
	ID           string                    `json:"id"`
	CreatedAt    time.Time                 `json:"created_at"`
	Platforms    []Platform                `json:"platforms"`
	Content      Content                   `json:"content"`
	MediaQuery   *MediaQuery               `json:"media_query,omitempty"`
	Options      Options                   `json:"options"`
	PlatformData map[Platform]any          `json:"platform_data,omitempty"`
	Internal     Internal                  `json:"internal"`
}

// HasPlatform reports whether p is currently selected.
func (d *DraftPost) HasPlatform(p Platform) bool {
	for _, sel := range d.Platforms {
		if sel == p {
			return true
		}
	}
	return false
}

// IsResolved reports whether media resolution is complete: either concrete
// media is attached, or no media was requested in the first place.
func (d *DraftPost) IsResolved() bool {
	if len(d.Content.Media) > 0 {
		return true
	}
	return d.MediaQuery.IsZero()
}

// Clone returns a deep copy safe to hand to observers.
func (d *DraftPost) Clone() *DraftPost {
	if d == nil {
		return nil
	}
	out := *d

	out.Platforms = append([]Platform(nil), d.Platforms...)
	out.Content.Hashtags = append([]string(nil), d.Content.Hashtags...)
	out.Content.Mentions = append([]string(nil), d.Content.Mentions...)
	out.Content.Media = append([]MediaItem(nil), d.Content.Media...)

	if d.MediaQuery != nil {
		q := *d.MediaQuery
		q.SearchTerms = append([]string(nil), d.MediaQuery.SearchTerms...)
		q.MediaTypes = append([]MediaType(nil), d.MediaQuery.MediaTypes...)
		if d.MediaQuery.DateRange != nil {
			r := *d.MediaQuery.DateRange
			q.DateRange = &r
		}
		out.MediaQuery = &q
	}

	if d.Options.Visibility != nil {
		out.Options.Visibility = make(map[Platform]string, len(d.Options.Visibility))
		for k, v := range d.Options.Visibility {
			out.Options.Visibility[k] = v
		}
	}
	if d.Options.ReplyTarget != nil {
		out.Options.ReplyTarget = make(map[Platform]string, len(d.Options.ReplyTarget))
		for k, v := range d.Options.ReplyTarget {
			out.Options.ReplyTarget[k] = v
		}
	}
	if d.PlatformData != nil {
		out.PlatformData = make(map[Platform]any, len(d.PlatformData))
		for k, v := range d.PlatformData {
			out.PlatformData[k] = v
		}
	}

	return &out
}

// NormalizeHashtag trims whitespace and strips a single leading '#'.
// An empty result is rejected. Case folding and dedup are deliberately
// not applied here.
func NormalizeHashtag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "#")
	if tag == "" {
		return "", ErrInvalidHashtag
	}
	if strings.ContainsAny(tag, " \t\n") {
		return "", ErrInvalidHashtag
	}
	return tag, nil
}

// PostStatus is the durable lifecycle status of a draft.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusScheduled PostStatus = "scheduled"
	StatusPosted    PostStatus = "posted"
	StatusFailed    PostStatus = "failed"
)

// ErrorLogEntry is one append-only audit record for a failed publish.
type ErrorLogEntry struct {
	At       time.Time `json:"at"`
	Platform Platform  `json:"platform"`
	Message  string    `json:"message"`
}
