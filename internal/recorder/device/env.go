package device

import (
	"os"
	"path/filepath"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/voxpost/voxpost/internal/recorder"
)

// Env implements the recorder environment preconditions for a desktop host:
// microphone access means the configured input device exists, and scratch
// space means the scratch directory is writable right now.
type Env struct {
	scratchDir string
	inputCheck func() bool
}

func NewEnv(scratchDir string, inputCheck func() bool) *Env {
	return &Env{scratchDir: scratchDir, inputCheck: inputCheck}
}

var _ recorder.Environment = (*Env)(nil)

func (e *Env) HasMicrophonePermission() bool {
	if e.inputCheck == nil {
		return true
	}
	return e.inputCheck()
}

// HasWritableScratchSpace probes with a real write; a stat check alone can
// lie on read-only mounts.
func (e *Env) HasWritableScratchSpace() bool {
	if err := os.MkdirAll(e.scratchDir, 0o755); err != nil {
		return false
	}

	id, err := gonanoid.New()
	if err != nil {
		return false
	}
	probe := filepath.Join(e.scratchDir, ".probe-"+id)
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}
