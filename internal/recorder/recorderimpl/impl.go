package recorderimpl

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/h2non/filetype"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/internal/recorder"
	"github.com/voxpost/voxpost/internal/transcriber"
	"github.com/voxpost/voxpost/pkg/logger"
	"go.uber.org/fx"
)

// Config controls the recording state machine timings and thresholds.
type Config struct {
	MinDuration      time.Duration
	MaxDuration      time.Duration
	TickInterval     time.Duration
	SpeechThreshold  float64
	SilenceThreshold float64
	SilenceRunLimit  int
	Capture          recorder.CaptureConfig
}

func DefaultConfig(scratchDir string) Config {
	return Config{
		MinDuration:      500 * time.Millisecond,
		MaxDuration:      30 * time.Second,
		TickInterval:     500 * time.Millisecond,
		SpeechThreshold:  0.15,
		SilenceThreshold: 0.05,
		SilenceRunLimit:  6,
		Capture: recorder.CaptureConfig{
			SampleRate:  16000,
			Channels:    1,
			BitrateKbps: 32,
			ScratchDir:  scratchDir,
		},
	}
}

type Opts struct {
	fx.In

	Device      recorder.CaptureDevice
	Environment recorder.Environment
	Transcriber transcriber.Client
	Events      recorder.EventSink
	Logger      logger.Logger
	Config      Config
}

type Impl struct {
	device      recorder.CaptureDevice
	env         recorder.Environment
	transcriber transcriber.Client
	events      recorder.EventSink
	logger      logger.Logger
	cfg         Config

	mu           sync.Mutex
	state        domain.RecordingState
	run          *captureRun
	gen          uint64
	transcript   string
	pendingAsset string
	lastSnapshot domain.RecordingSnapshot
}

// captureRun owns the timers and the live capture session for one recording.
// Its goroutine is torn down on every exit path out of the recording state.
type captureRun struct {
	session   recorder.CaptureSession
	monitor   *amplitudeMonitor
	startedAt time.Time
	cancel    chan struct{}
	done      chan struct{}
}

func New(opts Opts) *Impl {
	return &Impl{
		device:      opts.Device,
		env:         opts.Environment,
		transcriber: opts.Transcriber,
		events:      opts.Events,
		logger:      opts.Logger.WithComponent("Recorder"),
		cfg:         opts.Config,
		state:       domain.RecordingStateIdle,
	}
}

var _ recorder.Client = (*Impl)(nil)

// Start begins capture. Only valid from idle.
func (r *Impl) Start(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case domain.RecordingStateRecording:
		r.mu.Unlock()
		return nil
	case domain.RecordingStateProcessing, domain.RecordingStateReady:
		r.mu.Unlock()
		return recorder.ErrAlreadyInProgress
	}

	if !r.env.HasMicrophonePermission() {
		r.mu.Unlock()
		return recorder.ErrPermissionDenied
	}
	if !r.env.HasWritableScratchSpace() {
		r.mu.Unlock()
		return recorder.ErrScratchUnavailable
	}

	session, err := r.device.Start(ctx, r.cfg.Capture)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", recorder.ErrCaptureStartFailed, err)
	}

	run := &captureRun{
		session:   session,
		monitor:   newAmplitudeMonitor(r.cfg.SpeechThreshold, r.cfg.SilenceThreshold, r.cfg.SilenceRunLimit),
		startedAt: time.Now(),
		cancel:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.run = run
	r.state = domain.RecordingStateRecording
	r.transcript = ""
	r.pendingAsset = ""
	r.mu.Unlock()

	go r.runTimers(run)

	r.events.RecordingStateChanged(domain.RecordingStateRecording, domain.RecordingReasonStarted)
	return nil
}

// runTimers owns the amplitude sampling ticker and the max-duration cutoff.
func (r *Impl) runTimers(run *captureRun) {
	defer close(run.done)

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	maxTimer := time.NewTimer(r.cfg.MaxDuration)
	defer maxTimer.Stop()

	for {
		select {
		case <-run.cancel:
			return
		case <-ticker.C:
			if run.monitor.Sample(run.session.Level()) {
				r.events.RecordingAdvisory(domain.AdvisoryProlongedSilence)
			}
		case <-maxTimer.C:
			go r.autoStop(run)
			return
		}
	}
}

// autoStop enforces the max-duration cutoff. Ownership of the run is claimed
// under the lock, so a caller's Stop that won the race keeps its in-flight
// pipeline and the cutoff has nothing left to do.
func (r *Impl) autoStop(run *captureRun) {
	r.mu.Lock()
	if r.run != run {
		r.mu.Unlock()
		return
	}
	r.run = nil
	r.state = domain.RecordingStateProcessing
	gen := r.gen
	r.mu.Unlock()

	r.events.RecordingStateChanged(domain.RecordingStateRecording, domain.RecordingReasonMaxDurationReached)
	if _, err := r.drain(context.Background(), run, gen); err != nil {
		r.logger.Warn("Auto-stop at max duration failed", "error", err)
	}
}

// Stop ends capture, validates the session, and hands the asset to the
// transcriber. See recorder.Client for the per-state semantics.
func (r *Impl) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	switch r.state {
	case domain.RecordingStateIdle:
		r.mu.Unlock()
		return "", nil
	case domain.RecordingStateProcessing, domain.RecordingStateReady:
		// Cancellation of the pending pipeline stage, not an error.
		r.resetLocked()
		r.mu.Unlock()
		r.events.RecordingStateChanged(domain.RecordingStateIdle, domain.RecordingReasonDiscarded)
		return "", nil
	}

	run := r.run
	r.run = nil
	r.state = domain.RecordingStateProcessing
	gen := r.gen
	r.mu.Unlock()

	return r.drain(ctx, run, gen)
}

// drain tears down a claimed capture run, validates the session, and hands
// the asset to the transcriber.
func (r *Impl) drain(ctx context.Context, run *captureRun, gen uint64) (string, error) {
	close(run.cancel)
	<-run.done

	if err := run.session.Stop(); err != nil {
		r.logger.Warn("Capture session did not stop cleanly", "error", err)
	}

	// Elapsed comes from the monotonic start timestamp, not the tick count.
	elapsed := time.Since(run.startedAt)
	assetPath := run.session.Path()

	if err := r.validateSession(run, elapsed, assetPath); err != nil {
		r.discardAsset(assetPath)
		r.finish(gen, domain.RecordingStateIdle, reasonForValidation(err), "", "")
		return "", err
	}

	r.events.RecordingStateChanged(domain.RecordingStateProcessing, domain.RecordingReasonTranscribing)

	text, err := r.transcriber.Transcribe(ctx, assetPath)
	if err != nil {
		// Keep the asset so the caller can retry transcription alone.
		if !r.finish(gen, domain.RecordingStateIdle, domain.RecordingReasonTranscriptionFailed, "", assetPath) {
			r.discardAsset(assetPath)
			return "", recorder.ErrRecordingAborted
		}
		return "", fmt.Errorf("%w: %v", transcriber.ErrTranscriptionFailed, err)
	}

	if !r.finish(gen, domain.RecordingStateReady, domain.RecordingReasonTranscriptReady, text, "") {
		r.discardAsset(assetPath)
		return "", recorder.ErrRecordingAborted
	}

	r.recordSnapshot(run, elapsed, text)
	r.discardAsset(assetPath)
	return text, nil
}

// RetryTranscription re-runs transcription over a retained asset after a
// transcription failure.
func (r *Impl) RetryTranscription(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.state != domain.RecordingStateIdle || r.pendingAsset == "" {
		r.mu.Unlock()
		return "", recorder.ErrNoPendingAudio
	}
	assetPath := r.pendingAsset
	r.state = domain.RecordingStateProcessing
	gen := r.gen
	r.mu.Unlock()

	r.events.RecordingStateChanged(domain.RecordingStateProcessing, domain.RecordingReasonTranscribing)

	text, err := r.transcriber.Transcribe(ctx, assetPath)
	if err != nil {
		if !r.finish(gen, domain.RecordingStateIdle, domain.RecordingReasonTranscriptionFailed, "", assetPath) {
			r.discardAsset(assetPath)
			return "", recorder.ErrRecordingAborted
		}
		return "", fmt.Errorf("%w: %v", transcriber.ErrTranscriptionFailed, err)
	}

	if !r.finish(gen, domain.RecordingStateReady, domain.RecordingReasonTranscriptReady, text, "") {
		r.discardAsset(assetPath)
		return "", recorder.ErrRecordingAborted
	}

	r.discardAsset(assetPath)
	return text, nil
}

// Snapshot returns an immutable view of the current session.
func (r *Impl) Snapshot() domain.RecordingSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.run != nil {
		return domain.RecordingSnapshot{
			State:          r.state,
			StartedAt:      r.run.startedAt,
			ElapsedSeconds: time.Since(r.run.startedAt).Seconds(),
			MaxAmplitude:   r.run.monitor.MaxLevel(),
			SpeechObserved: r.run.monitor.SpeechObserved(),
		}
	}

	snap := r.lastSnapshot
	snap.State = r.state
	snap.Transcript = r.transcript
	return snap
}

func (r *Impl) validateSession(run *captureRun, elapsed time.Duration, assetPath string) error {
	if !run.monitor.SpeechObserved() {
		return recorder.ErrNoSpeechDetected
	}
	if elapsed < r.cfg.MinDuration {
		return recorder.ErrRecordingTooShort
	}
	return validateAudioAsset(assetPath)
}

// finish transitions out of processing if the session generation still
// matches; a mismatch means a concurrent Stop discarded this pipeline.
func (r *Impl) finish(gen uint64, state domain.RecordingState, reason domain.RecordingReason, transcript, pendingAsset string) bool {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return false
	}
	r.state = state
	r.transcript = transcript
	r.pendingAsset = pendingAsset
	if state == domain.RecordingStateIdle {
		r.gen++
	}
	r.mu.Unlock()

	r.events.RecordingStateChanged(state, reason)
	return true
}

// resetLocked discards all session state. Callers hold r.mu.
func (r *Impl) resetLocked() {
	r.state = domain.RecordingStateIdle
	r.transcript = ""
	if r.pendingAsset != "" {
		r.discardAsset(r.pendingAsset)
		r.pendingAsset = ""
	}
	r.lastSnapshot = domain.RecordingSnapshot{State: domain.RecordingStateIdle}
	r.gen++
}

func (r *Impl) recordSnapshot(run *captureRun, elapsed time.Duration, transcript string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSnapshot = domain.RecordingSnapshot{
		State:          r.state,
		StartedAt:      run.startedAt,
		ElapsedSeconds: elapsed.Seconds(),
		MaxAmplitude:   run.monitor.MaxLevel(),
		SpeechObserved: run.monitor.SpeechObserved(),
		Transcript:     transcript,
	}
}

func (r *Impl) discardAsset(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("Failed to remove audio asset", "path", path, "error", err)
	}
}

func reasonForValidation(err error) domain.RecordingReason {
	switch err {
	case recorder.ErrNoSpeechDetected:
		return domain.RecordingReasonNoSpeech
	case recorder.ErrRecordingTooShort:
		return domain.RecordingReasonTooShort
	}
	return domain.RecordingReasonInvalidAsset
}

// validateAudioAsset checks that the captured file exists, is non-empty, and
// carries a recognizable audio container signature.
func validateAudioAsset(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", recorder.ErrInvalidAudioAsset, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return recorder.ErrInvalidAudioAsset
	}

	head := make([]byte, 261)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", recorder.ErrInvalidAudioAsset, err)
	}
	if !filetype.IsAudio(head[:n]) {
		return recorder.ErrInvalidAudioAsset
	}
	return nil
}
