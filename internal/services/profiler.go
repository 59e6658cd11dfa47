package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// ---------------------------------------------------------------------------
// ProfilerService: common interface for speaker-profiling providers
// The OpenAI-compatible and Gemini providers both implement this interface so
// the pipeline can use whichever is configured. A failed or malformed
// analysis is reported as an error and the caller falls back to rule-based
// assignment; partial results are never merged with rule output.
// ---------------------------------------------------------------------------

// ProfilerService infers a demographic profile per speaker label.
type ProfilerService interface {
	AnalyzeSpeakers(ctx context.Context, scene models.Scene, turns []models.DialogueTurn) (map[string]models.SpeakerProfile, error)
}

const (
	profilerTemperature = 0.3
	profilerMaxTokens   = 500
	profilerMaxLogLen   = 2000
)

// buildProfilerPrompt asks for one JSON object keyed by speaker label.
func buildProfilerPrompt(scene models.Scene, turns []models.DialogueTurn) string {
	var transcript strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&transcript, "%s: %s\n", t.Speaker, t.Text)
	}

	return fmt.Sprintf(`Analyze the speakers in this %s-scene dialogue.

Dialogue:
%s
Speakers: %s

For every speaker return:
- age_group: one of child, teenager, young_adult, adult, elderly
- gender: male or female
- role: the speaker's part in the scene (e.g. teacher, customer, doctor)
- emotion: overall delivery (e.g. calm, professional, excited)

Respond with ONLY a JSON object keyed by speaker label, like:
{"M": {"age_group": "adult", "gender": "male", "role": "teacher", "emotion": "professional"}}`,
		scene, transcript.String(), strings.Join(models.SpeakerOrder(turns), ", "))
}

// Models wrap JSON in markdown fences or prose despite instructions, and
// some emit trailing commas. Tolerate both; anything beyond that is treated
// as no answer.
var (
	jsonFence     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	jsonObject    = regexp.MustCompile(`(?s)\{.*\}`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

type rawSpeakerProfile struct {
	AgeGroup string `json:"age_group"`
	Gender   string `json:"gender"`
	Role     string `json:"role"`
	Emotion  string `json:"emotion"`
}

// parseProfilerResponse turns a model response into usable profiles. Entries
// missing age_group or gender are dropped, as are labels the parser never
// saw. An empty accepted set is an error: the caller falls back to rules
// instead of half-trusting the model.
func parseProfilerResponse(raw string, labels []string) (map[string]models.SpeakerProfile, error) {
	cleaned := strings.TrimSpace(raw)
	if m := jsonFence.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}
	if m := jsonObject.FindString(cleaned); m != "" {
		cleaned = m
	}
	cleaned = trailingComma.ReplaceAllString(cleaned, "$1")

	var entries map[string]rawSpeakerProfile
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse profiler response: %w", err)
	}

	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
	}

	profiles := make(map[string]models.SpeakerProfile, len(entries))
	for label, e := range entries {
		if !known[label] {
			continue
		}
		if e.AgeGroup == "" || e.Gender == "" {
			continue
		}
		profiles[label] = models.SpeakerProfile{
			AgeGroup: models.AgeGroup(strings.ToLower(e.AgeGroup)),
			Gender:   models.Gender(strings.ToLower(e.Gender)),
			Role:     e.Role,
			Emotion:  e.Emotion,
		}
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("no usable speaker profiles in response")
	}
	return profiles, nil
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
