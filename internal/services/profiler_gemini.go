package services

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// ---------------------------------------------------------------------------
// Gemini Speaker Profiler
// Same contract as the OpenAI-compatible profiler, served by the Google
// Gen AI SDK with a JSON response MIME type.
// ---------------------------------------------------------------------------

const defaultGeminiProfilerModel = "gemini-2.5-flash"

// GeminiProfilerService infers speaker profiles via the Gemini API.
type GeminiProfilerService struct {
	apiKey string
	model  string
}

// Ensure GeminiProfilerService implements ProfilerService at compile time.
var _ ProfilerService = (*GeminiProfilerService)(nil)

func NewGeminiProfilerService(apiKey, model string) *GeminiProfilerService {
	if model == "" {
		model = defaultGeminiProfilerModel
	}
	return &GeminiProfilerService{apiKey: apiKey, model: model}
}

func (s *GeminiProfilerService) AnalyzeSpeakers(ctx context.Context, scene models.Scene, turns []models.DialogueTurn) (map[string]models.SpeakerProfile, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, s.model,
		genai.Text(buildProfilerPrompt(scene, turns)),
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](profilerTemperature),
			ResponseMIMEType: "application/json",
		})
	if err != nil {
		return nil, fmt.Errorf("profiler request failed: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("no response from profiler")
	}

	profiles, err := parseProfilerResponse(raw, models.SpeakerOrder(turns))
	if err != nil {
		log.Printf("[Gemini profiler] unusable response: %v", err)
		log.Printf("[Gemini profiler] raw response: %s", truncateString(raw, profilerMaxLogLen))
		return nil, err
	}

	log.Printf("[Gemini profiler] %d speaker(s) profiled via %s", len(profiles), s.model)
	return profiles, nil
}
