package domain

import "time"

// RecordingState models the capture pipeline lifecycle.
type RecordingState string

const (
	RecordingStateIdle       RecordingState = "idle"
	RecordingStateRecording  RecordingState = "recording"
	RecordingStateProcessing RecordingState = "processing"
	RecordingStateReady      RecordingState = "ready"
)

// RecordingReason provides a structured reason for state transitions.
type RecordingReason string

const (
	RecordingReasonStarted             RecordingReason = "recording_started"
	RecordingReasonStopped             RecordingReason = "recording_stopped"
	RecordingReasonMaxDurationReached  RecordingReason = "max_duration_reached"
	RecordingReasonDiscarded           RecordingReason = "recording_discarded"
	RecordingReasonNoSpeech            RecordingReason = "no_speech_detected"
	RecordingReasonTooShort            RecordingReason = "recording_too_short"
	RecordingReasonInvalidAsset        RecordingReason = "invalid_audio_asset"
	RecordingReasonTranscribing        RecordingReason = "transcribing"
	RecordingReasonTranscriptReady     RecordingReason = "transcript_ready"
	RecordingReasonTranscriptionFailed RecordingReason = "transcription_failed"
)

// RecordingAdvisory is a non-fatal signal surfaced to the caller without
// altering pipeline state.
type RecordingAdvisory string

const (
	AdvisoryProlongedSilence RecordingAdvisory = "prolonged_silence"
)

// RecordingSnapshot is an immutable view of the transient recording session.
type RecordingSnapshot struct {
	State          RecordingState
	StartedAt      time.Time
	ElapsedSeconds float64
	MaxAmplitude   float64
	SpeechObserved bool
	Transcript     string
}

// Readiness reports whether a draft can be published right now and, when it
// cannot, the human-readable reasons why.
type Readiness struct {
	IsReady             bool
	MissingRequirements []string
}
