package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// ---------------------------------------------------------------------------
// Espeak Backend
// Formant synthesizer, fully offline and voice-agnostic. Last resort in the
// chain: every speaker sounds the same, but a job still produces audio with
// nothing else installed.
// ---------------------------------------------------------------------------

const (
	espeakBin          = "espeak"
	espeakVoice        = "en-us"
	espeakTimeout      = 30 * time.Second
	espeakProbeTimeout = 2 * time.Second
)

// EspeakService renders speech through the espeak subprocess.
type EspeakService struct {
	timeout time.Duration
}

// Ensure EspeakService implements SpeechBackend at compile time.
var _ SpeechBackend = (*EspeakService)(nil)

func NewEspeakService() *EspeakService {
	return &EspeakService{timeout: espeakTimeout}
}

func (s *EspeakService) Name() string { return "espeak" }

func (s *EspeakService) AudioFormat() string { return "wav" }

// Probe checks that espeak is installed and answers.
func (s *EspeakService) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(espeakBin); err != nil {
		return fmt.Errorf("espeak not installed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, espeakProbeTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, espeakBin, "--version").Run(); err != nil {
		return fmt.Errorf("espeak --version failed: %w", err)
	}
	return nil
}

// SynthesizeTurn ignores the voice token, seed and decoding parameters.
func (s *EspeakService) SynthesizeTurn(ctx context.Context, req TurnRequest) error {
	return s.run(ctx, req.Text, req.OutputPath)
}

func (s *EspeakService) SynthesizePlain(ctx context.Context, text, outputPath string) error {
	return s.run(ctx, text, outputPath)
}

func (s *EspeakService) run(ctx context.Context, text, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Printf("[Espeak] Generating speech (textLen=%d)", len(text))

	cmd := exec.CommandContext(ctx, espeakBin, "-v", espeakVoice, "-w", outputPath, text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("espeak failed: %w (%s)", err, tailOf(stderr.String()))
	}
	return verifyAudioFile(outputPath)
}
