package recorder

import (
	"context"
	"errors"

	"github.com/voxpost/voxpost/internal/domain"
)

var (
	ErrPermissionDenied     = errors.New("microphone permission denied")
	ErrScratchUnavailable   = errors.New("scratch storage unavailable")
	ErrCaptureStartFailed   = errors.New("audio capture failed to start")
	ErrNoSpeechDetected     = errors.New("no speech detected in recording")
	ErrRecordingTooShort    = errors.New("recording too short")
	ErrInvalidAudioAsset    = errors.New("invalid audio asset")
	ErrRecordingAborted     = errors.New("recording aborted")
	ErrAlreadyInProgress    = errors.New("recording pipeline already in progress")
	ErrNoPendingAudio       = errors.New("no pending audio asset to transcribe")
)

//go:generate go run go.uber.org/mock/mockgen -source=recorder.go -destination=mocks/mock.go
type Client interface {
	// Start begins capture. Only valid from idle; calling it again while
	// recording is a no-op.
	Start(ctx context.Context) error

	// Stop ends capture and runs the transcription hand-off, returning the
	// transcript. From processing or ready it aborts the pending result and
	// resets to idle. From idle it is a no-op.
	Stop(ctx context.Context) (string, error)

	// RetryTranscription re-runs transcription over the retained audio asset
	// after a transcription failure.
	RetryTranscription(ctx context.Context) (string, error)

	// Snapshot returns an immutable view of the current session.
	Snapshot() domain.RecordingSnapshot
}

// CaptureConfig describes how the microphone should be captured. The
// encoding profile is fixed for speech: mono, 16 kHz, low bitrate.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	BitrateKbps int
	ScratchDir  string
	InputFormat string
	InputDevice string
}

// CaptureSession is a live capture sink writing to a scratch file.
type CaptureSession interface {
	// Level returns the instantaneous normalized signal level in [0, 1].
	Level() float64

	// Stop halts capture and finalizes the output file.
	Stop() error

	// Path returns the location of the captured asset.
	Path() string
}

// CaptureDevice opens microphone capture sessions.
type CaptureDevice interface {
	Start(ctx context.Context, cfg CaptureConfig) (CaptureSession, error)
}

// Environment exposes the device preconditions checked before capture.
type Environment interface {
	HasMicrophonePermission() bool
	HasWritableScratchSpace() bool
}

// EventSink receives recording state transitions and advisories.
type EventSink interface {
	RecordingStateChanged(state domain.RecordingState, reason domain.RecordingReason)
	RecordingAdvisory(advisory domain.RecordingAdvisory)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordingStateChanged(domain.RecordingState, domain.RecordingReason) {}
func (NopSink) RecordingAdvisory(domain.RecordingAdvisory)                          {}
