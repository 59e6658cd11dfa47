package models

import (
	"time"

	"github.com/google/uuid"
)

// Enums

type Scene string

const (
	SceneSchool     Scene = "school"
	SceneMedical    Scene = "medical"
	SceneShopping   Scene = "shopping"
	SceneFamily     Scene = "family"
	SceneRestaurant Scene = "restaurant"
	SceneGeneral    Scene = "general"
)

// AllScenes lists every scene tag in classifier priority order, default last.
func AllScenes() []Scene {
	return []Scene{
		SceneSchool,
		SceneMedical,
		SceneShopping,
		SceneFamily,
		SceneRestaurant,
		SceneGeneral,
	}
}

// ParseScene validates a caller-supplied scene tag.
func ParseScene(s string) (Scene, bool) {
	for _, sc := range AllScenes() {
		if s == string(sc) {
			return sc, true
		}
	}
	return "", false
}

type JobStatus string

const (
	JobStatusQueued       JobStatus = "queued"
	JobStatusParsing      JobStatus = "parsing"
	JobStatusPlain        JobStatus = "plain_synthesis"
	JobStatusClassifying  JobStatus = "classifying"
	JobStatusProfiling    JobStatus = "profiling"
	JobStatusAssigning    JobStatus = "assigning"
	JobStatusSynthesizing JobStatus = "synthesizing"
	JobStatusAssembling   JobStatus = "assembling"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
)

type AgeGroup string

const (
	AgeChild      AgeGroup = "child"
	AgeTeenager   AgeGroup = "teenager"
	AgeYoungAdult AgeGroup = "young_adult"
	AgeAdult      AgeGroup = "adult"
	AgeElderly    AgeGroup = "elderly"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// VoiceCategory is an opaque voice token. Each backend resolves categories its
// own way: the networked backend maps them to named neural voices, the
// generative backend keys voices off per-speaker seeds, and the offline
// backend renders everything with one voice. Caller overrides may carry
// arbitrary tokens outside this set; those reach the active backend verbatim.
type VoiceCategory string

const (
	VoiceMaleAdultDeep           VoiceCategory = "male-adult-deep"
	VoiceMaleAdultWarm           VoiceCategory = "male-adult-warm"
	VoiceMaleAdultProfessional   VoiceCategory = "male-adult-professional"
	VoiceMaleAdultFriendly       VoiceCategory = "male-adult-friendly"
	VoiceFemaleAdultCalm         VoiceCategory = "female-adult-calm"
	VoiceFemaleAdultFriendly     VoiceCategory = "female-adult-friendly"
	VoiceFemaleAdultProfessional VoiceCategory = "female-adult-professional"
	VoiceMaleYoungCasual         VoiceCategory = "male-young-casual"
	VoiceMaleYoungEnergetic      VoiceCategory = "male-young-energetic"
	VoiceFemaleYoungCasual       VoiceCategory = "female-young-casual"
	VoiceFemaleYoungSweet        VoiceCategory = "female-young-sweet"
)

// AllVoiceCategories lists every built-in voice token.
func AllVoiceCategories() []VoiceCategory {
	return []VoiceCategory{
		VoiceMaleAdultDeep,
		VoiceMaleAdultWarm,
		VoiceMaleAdultProfessional,
		VoiceMaleAdultFriendly,
		VoiceFemaleAdultCalm,
		VoiceFemaleAdultFriendly,
		VoiceFemaleAdultProfessional,
		VoiceMaleYoungCasual,
		VoiceMaleYoungEnergetic,
		VoiceFemaleYoungCasual,
		VoiceFemaleYoungSweet,
	}
}

type SpeedPreset string

const (
	SpeedSlow   SpeedPreset = "slow"
	SpeedNormal SpeedPreset = "normal"
	SpeedFast   SpeedPreset = "fast"
)

// Multiplier returns the playback-rate factor for the preset.
func (s SpeedPreset) Multiplier() float64 {
	switch s {
	case SpeedSlow:
		return 0.8
	case SpeedFast:
		return 1.2
	default:
		return 1.0
	}
}

func ParseSpeedPreset(s string) (SpeedPreset, bool) {
	switch SpeedPreset(s) {
	case SpeedSlow, SpeedNormal, SpeedFast:
		return SpeedPreset(s), true
	}
	return "", false
}

// Models

type DialogueTurn struct {
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SpeakerOrder returns the distinct speaker labels in first-appearance order.
func SpeakerOrder(turns []DialogueTurn) []string {
	seen := make(map[string]bool, len(turns))
	order := make([]string, 0, len(turns))
	for _, t := range turns {
		if !seen[t.Speaker] {
			seen[t.Speaker] = true
			order = append(order, t.Speaker)
		}
	}
	return order
}

// DecodingParams tunes the generative synthesis backend; each scene carries
// its own set.
type DecodingParams struct {
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	TopK              int     `json:"top_k"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// SpeakerProfile describes one speaker as inferred by the profiler. AgeGroup
// and Gender are mandatory for the profile to be usable; Role and Emotion are
// advisory.
type SpeakerProfile struct {
	AgeGroup AgeGroup `json:"age_group"`
	Gender   Gender   `json:"gender"`
	Role     string   `json:"role,omitempty"`
	Emotion  string   `json:"emotion,omitempty"`
}

// IsYoung reports whether the profile falls in the young age bands.
func (p SpeakerProfile) IsYoung() bool {
	switch p.AgeGroup {
	case AgeChild, AgeTeenager, AgeYoungAdult:
		return true
	}
	return false
}

// VoiceAssignment maps speaker label to voice token. Computed once per job,
// never mutated afterwards, and total over every label the parser produced.
type VoiceAssignment map[string]VoiceCategory

// SynthesisJob is the unit of work owned by a single pipeline run.
type SynthesisJob struct {
	ID         uuid.UUID                 `json:"id"`
	Script     string                    `json:"script"`
	Turns      []DialogueTurn            `json:"turns"`
	Scene      Scene                     `json:"scene"`
	Profiles   map[string]SpeakerProfile `json:"profiles,omitempty"`
	Voices     VoiceAssignment           `json:"voices,omitempty"`
	Status     JobStatus                 `json:"status"`
	Backend    string                    `json:"backend,omitempty"` // backend that produced the output
	OutputPath string                    `json:"output_path,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
}

// DTOs for the entry point

type SynthesisRequest struct {
	Script         string            `json:"script"`
	OutputPath     string            `json:"output_path,omitempty"`     // Default: OUTPUT_DIR/dialogue_<job>.mp3
	VoiceOverrides map[string]string `json:"voice_overrides,omitempty"` // Per-label, merged over computed voices
	SceneOverride  string            `json:"scene_override,omitempty"`  // Skips classification when set
}

type SynthesisResult struct {
	JobID      uuid.UUID `json:"job_id"`
	OutputPath string    `json:"output_path"`
	Scene      Scene     `json:"scene"`
	Backend    string    `json:"backend"`
	Turns      int       `json:"turns"`
	DurationMs int       `json:"duration_ms,omitempty"`
	Message    string    `json:"message"`
}
