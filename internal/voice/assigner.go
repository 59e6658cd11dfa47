package voice

import "github.com/ssdgjs/TeacherQRcode/internal/models"

// Assign resolves the voice for every speaker label in the dialogue.
// Precedence per label: caller override, then profile lookup, then scene
// rules. Overrides merge over the computed mapping, they never replace it,
// so labels the caller did not mention still resolve normally. The result is
// total over every label the parser produced and must not be mutated after
// assignment.
func Assign(scene models.Scene, turns []models.DialogueTurn, profiles map[string]models.SpeakerProfile, overrides map[string]string) models.VoiceAssignment {
	out := RuleAssign(scene, turns)

	for label := range out {
		if p, ok := profiles[label]; ok {
			out[label] = CategoryForProfile(p)
		}
	}

	for label, v := range overrides {
		if _, ok := out[label]; ok && v != "" {
			out[label] = models.VoiceCategory(v)
		}
	}

	return out
}
