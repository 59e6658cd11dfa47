package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// ---------------------------------------------------------------------------
// ChatTTS Generative Speech Backend
// Talks to a local ChatTTS inference server over HTTP. Distinct speakers are
// told apart by deterministic per-speaker seeds; decoding parameters come
// from the detected scene. Highest-quality backend in the chain.
// ---------------------------------------------------------------------------

const (
	chatTTSDefaultURL   = "http://127.0.0.1:9966"
	chatTTSGeneratePath = "/generate"
	chatTTSHealthPath   = "/health"
	chatTTSTimeout      = 120 * time.Second
	chatTTSProbeTimeout = 2 * time.Second

	// chatTTSSeedStep spaces the per-speaker seeds far enough apart that
	// adjacent speakers never share a voice character.
	chatTTSSeedStep = 1000
	// chatTTSPlainSeed is the fixed voice for scripts without dialogue markers.
	chatTTSPlainSeed = 2000
)

var chatTTSDefaultParams = models.DecodingParams{
	Temperature: 0.3, TopP: 0.7, TopK: 20, RepetitionPenalty: 1.05,
}

// SeedForSpeaker returns the deterministic seed for the i-th distinct speaker
// of a job, zero-based in first-appearance order. Same script, same seeds.
func SeedForSpeaker(i int) int {
	return (i + 1) * chatTTSSeedStep
}

// ChatTTSService renders speech through a ChatTTS inference server.
type ChatTTSService struct {
	baseURL string

	mu     sync.Mutex
	client *http.Client
}

// Ensure ChatTTSService implements SpeechBackend at compile time.
var _ SpeechBackend = (*ChatTTSService)(nil)

func NewChatTTSService(baseURL string) *ChatTTSService {
	if baseURL == "" {
		baseURL = chatTTSDefaultURL
	}
	return &ChatTTSService{baseURL: strings.TrimRight(baseURL, "/")}
}

// session returns the shared HTTP client, created on first use. Keep-alive
// connections let the server keep its model loaded across turns and jobs.
func (s *ChatTTSService) session() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		s.client = &http.Client{Timeout: chatTTSTimeout}
	}
	return s.client
}

type chatTTSRequest struct {
	Text              string  `json:"text"`
	Seed              int     `json:"seed"`
	Temperature       float64 `json:"temperature,omitempty"`
	TopP              float64 `json:"top_p,omitempty"`
	TopK              int     `json:"top_k,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
}

func (s *ChatTTSService) Name() string { return "chattts" }

func (s *ChatTTSService) AudioFormat() string { return "wav" }

// Probe checks the inference server's health endpoint.
func (s *ChatTTSService) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, chatTTSProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+chatTTSHealthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := s.session().Do(req)
	if err != nil {
		return fmt.Errorf("inference server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference server health returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *ChatTTSService) SynthesizeTurn(ctx context.Context, req TurnRequest) error {
	return s.generate(ctx, chatTTSRequest{
		Text:              req.Text,
		Seed:              req.Seed,
		Temperature:       req.Params.Temperature,
		TopP:              req.Params.TopP,
		TopK:              req.Params.TopK,
		RepetitionPenalty: req.Params.RepetitionPenalty,
	}, req.OutputPath)
}

func (s *ChatTTSService) SynthesizePlain(ctx context.Context, text, outputPath string) error {
	return s.generate(ctx, chatTTSRequest{
		Text:              text,
		Seed:              chatTTSPlainSeed,
		Temperature:       chatTTSDefaultParams.Temperature,
		TopP:              chatTTSDefaultParams.TopP,
		TopK:              chatTTSDefaultParams.TopK,
		RepetitionPenalty: chatTTSDefaultParams.RepetitionPenalty,
	}, outputPath)
}

func (s *ChatTTSService) generate(ctx context.Context, body chatTTSRequest, outputPath string) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal ChatTTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+chatTTSGeneratePath, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create ChatTTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[ChatTTS] Generating speech (seed=%d, textLen=%d)", body.Seed, len(body.Text))

	resp, err := s.session().Do(req)
	if err != nil {
		return fmt.Errorf("ChatTTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ChatTTS returned status %d: %s", resp.StatusCode, string(respBody))
	}

	// The response body IS the audio file
	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read ChatTTS audio response: %w", err)
	}
	if len(audioData) == 0 {
		return fmt.Errorf("ChatTTS returned empty audio")
	}

	if err := os.WriteFile(outputPath, audioData, 0644); err != nil {
		return fmt.Errorf("failed to write ChatTTS audio: %w", err)
	}

	log.Printf("[ChatTTS] Speech generated (%d bytes)", len(audioData))
	return nil
}
