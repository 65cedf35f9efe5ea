package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/voxpost/voxpost/internal/recorder"
)

// FFmpegCapture records microphone audio with ffmpeg. It writes a speech
// profile m4a asset to scratch storage and mirrors raw PCM to stdout so the
// session can report a live signal level.
type FFmpegCapture struct {
	command string
}

func NewFFmpegCapture(command string) *FFmpegCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegCapture{command: command}
}

var _ recorder.CaptureDevice = (*FFmpegCapture)(nil)

func (c *FFmpegCapture) Start(ctx context.Context, cfg recorder.CaptureConfig) (recorder.CaptureSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.BitrateKbps <= 0 {
		cfg.BitrateKbps = 32
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	outPath := filepath.Join(cfg.ScratchDir, fmt.Sprintf("capture-%s.m4a", id))

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", cfg.BitrateKbps),
		outPath,
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	s := &ffmpegSession{
		path:    outPath,
		process: cmd.Process,
		waitErr: waitErr,
	}
	go s.trackLevel(stdout)

	return s, nil
}

type ffmpegSession struct {
	path    string
	process *os.Process
	waitErr <-chan error

	level atomic.Uint64

	stopOnce sync.Once
	stopErr  error
}

var _ recorder.CaptureSession = (*ffmpegSession)(nil)

// trackLevel reads the mirrored PCM stream and keeps a rolling RMS level.
func (s *ffmpegSession) trackLevel(pcm io.ReadCloser) {
	defer pcm.Close()

	buf := make([]byte, 4096)
	for {
		n, err := pcm.Read(buf)
		if n > 1 {
			var sum float64
			samples := 0
			for i := 0; i+1 < n; i += 2 {
				v := float64(int16(binary.LittleEndian.Uint16(buf[i:])))
				sum += v * v
				samples++
			}
			rms := math.Sqrt(sum/float64(samples)) / 32768.0
			s.level.Store(math.Float64bits(rms))
		}
		if err != nil {
			s.level.Store(0)
			return
		}
	}
}

func (s *ffmpegSession) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

func (s *ffmpegSession) Path() string {
	return s.path
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(3 * time.Second):
			if s.process != nil {
				_ = s.process.Kill()
			}
			s.stopErr = errors.New("ffmpeg did not exit in time")
		}
	})
	return s.stopErr
}

// ffmpeg reports a non-zero status when interrupted mid-stream; that is the
// normal shutdown path here, not a failure.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
