package transcriber

import (
	"context"
	"errors"
)

var (
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrEmptyTranscription  = errors.New("transcription returned empty text")
)

//go:generate go run go.uber.org/mock/mockgen -source=transcriber.go -destination=mocks/mock.go
type Client interface {
	// Transcribe converts a captured audio asset into text. Empty text is
	// reported as ErrEmptyTranscription.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
