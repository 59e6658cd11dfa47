package services

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// ---------------------------------------------------------------------------
// OpenAI-compatible Speaker Profiler
// Works against any chat-completions endpoint. Defaults target the GLM flash
// model; BaseURL is configurable so a stock OpenAI key works too.
// ---------------------------------------------------------------------------

const (
	openAIProfilerBaseURL = "https://open.bigmodel.cn/api/paas/v4"
	openAIProfilerModel   = "glm-4-flash"
)

const profilerSystemPrompt = "You analyze dialogue transcripts and describe each speaker. Respond with JSON only."

// OpenAIProfilerService infers speaker profiles via a chat-completions API.
type OpenAIProfilerService struct {
	client *openai.Client
	model  string
}

// Ensure OpenAIProfilerService implements ProfilerService at compile time.
var _ ProfilerService = (*OpenAIProfilerService)(nil)

func NewOpenAIProfilerService(apiKey, baseURL, model string) *OpenAIProfilerService {
	if baseURL == "" {
		baseURL = openAIProfilerBaseURL
	}
	if model == "" {
		model = openAIProfilerModel
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return &OpenAIProfilerService{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (s *OpenAIProfilerService) AnalyzeSpeakers(ctx context.Context, scene models.Scene, turns []models.DialogueTurn) (map[string]models.SpeakerProfile, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: profilerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildProfilerPrompt(scene, turns)},
		},
		Temperature: profilerTemperature,
		MaxTokens:   profilerMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("profiler request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from profiler")
	}

	raw := resp.Choices[0].Message.Content
	profiles, err := parseProfilerResponse(raw, models.SpeakerOrder(turns))
	if err != nil {
		log.Printf("[Profiler] unusable response: %v", err)
		log.Printf("[Profiler] raw response: %s", truncateString(raw, profilerMaxLogLen))
		return nil, err
	}

	log.Printf("[Profiler] %d speaker(s) profiled via %s", len(profiles), s.model)
	return profiles, nil
}
