package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// ---------------------------------------------------------------------------
// SpeechBackend: common interface for synthesis backends
// ChatTTS, edge-tts and espeak all implement this interface so the pipeline
// can walk the fallback chain without knowing the underlying renderer.
// ---------------------------------------------------------------------------

// TurnRequest carries everything a backend needs to render one utterance to
// an audio file.
type TurnRequest struct {
	Text       string
	Voice      string // opaque voice token; each backend resolves or ignores it
	Seed       int    // generative backends only
	Params     models.DecodingParams
	OutputPath string
}

// SpeechBackend is the interface every synthesis backend must implement.
type SpeechBackend interface {
	// Name identifies the backend in logs and results.
	Name() string
	// AudioFormat is the container the backend writes ("mp3" or "wav").
	AudioFormat() string
	// Probe checks that the backend is usable. Called once per process by the
	// chain; the result is cached.
	Probe(ctx context.Context) error
	// SynthesizeTurn renders one dialogue turn to req.OutputPath.
	SynthesizeTurn(ctx context.Context, req TurnRequest) error
	// SynthesizePlain renders free text with the backend's default voice, for
	// scripts without dialogue markers.
	SynthesizePlain(ctx context.Context, text, outputPath string) error
}

// ErrNoBackend is returned when every backend in the chain fails its probe.
var ErrNoBackend = errors.New("no synthesis backend available")

// ErrChainExhausted is returned when every available backend failed the job.
var ErrChainExhausted = errors.New("all synthesis backends failed")

// BackendError marks the failure of one backend. The pipeline reacts by
// restarting the whole job on the next backend in the chain; segments from
// different backends are never mixed.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// verifyAudioFile rejects missing or empty output, which some synthesizers
// produce on silent failure.
func verifyAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("no audio written: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty audio file %s", path)
	}
	return nil
}
