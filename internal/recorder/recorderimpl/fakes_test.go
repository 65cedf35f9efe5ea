package recorderimpl

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/internal/recorder"
	"github.com/voxpost/voxpost/pkg/logger"
)

// A minimal but real m4a container signature.
var m4aHeader = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'M', '4', 'A', ' ',
	0x00, 0x00, 0x00, 0x00, 'M', '4', 'A', ' ', 'm', 'p', '4', '2',
}

type fakeSession struct {
	mu         sync.Mutex
	level      float64
	levelCalls int
	stopped    bool
	path       string
}

func (s *fakeSession) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levelCalls++
	return s.level
}

func (s *fakeSession) setLevel(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = v
}

func (s *fakeSession) countLevelCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levelCalls
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeSession) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *fakeSession) Path() string { return s.path }

type fakeDevice struct {
	mu       sync.Mutex
	sessions []*fakeSession
	starts   int
	err      error
}

func (d *fakeDevice) Start(_ context.Context, _ recorder.CaptureConfig) (recorder.CaptureSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.starts++
	if len(d.sessions) == 0 {
		return nil, recorder.ErrCaptureStartFailed
	}
	s := d.sessions[0]
	d.sessions = d.sessions[1:]
	return s, nil
}

func (d *fakeDevice) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

type fakeEnv struct {
	mic     bool
	scratch bool
}

func (e *fakeEnv) HasMicrophonePermission() bool  { return e.mic }
func (e *fakeEnv) HasWritableScratchSpace() bool  { return e.scratch }

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	gate  chan struct{}
}

func (t *fakeTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	t.mu.Lock()
	t.calls++
	gate := t.gate
	err := t.err
	text := t.text
	t.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (t *fakeTranscriber) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func (t *fakeTranscriber) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type stateChange struct {
	state  domain.RecordingState
	reason domain.RecordingReason
}

type fakeSink struct {
	mu         sync.Mutex
	states     []stateChange
	advisories []domain.RecordingAdvisory
}

func (s *fakeSink) RecordingStateChanged(state domain.RecordingState, reason domain.RecordingReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, stateChange{state, reason})
}

func (s *fakeSink) RecordingAdvisory(a domain.RecordingAdvisory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advisories = append(s.advisories, a)
}

func (s *fakeSink) snapshotStates() []stateChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stateChange(nil), s.states...)
}

func (s *fakeSink) snapshotAdvisories() []domain.RecordingAdvisory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RecordingAdvisory(nil), s.advisories...)
}

func writeAsset(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.m4a")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write asset: %v", err)
	}
	return path
}

func testLogger() logger.Logger {
	return logger.New(logger.Opts{})
}
