package voice

import (
	"strings"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// Phrase sets for the school-scene heuristic. A speaker performing the
// teacher role addresses the class directly; students talking about a
// teacher use address forms and possessives instead. Both sets are matched
// against lowercased text.
var teacherSpeakingPhrases = []string{
	"good morning, class",
	"good afternoon, class",
	"good evening, class",
	"let me explain",
	"let's look at",
	"pay attention",
	"listen carefully",
	"you should",
	"you need to",
	"i want you to",
	"turn to",
	"open your",
	"today we'll",
	"today we are",
	"we'll learn",
	"we are going to",
}

var studentReferencePhrases = []string{
	"mr. ",
	"ms. ",
	"mrs. ",
	"professor ",
	"my teacher",
	"our teacher",
	"my professor",
	"our professor",
}

// childRoleKeywords force the young voice band even when the age estimate
// says adult; an explicit role label beats a noisy age guess.
var childRoleKeywords = []string{
	"student", "pupil", "child", "kid", "boy", "girl", "son", "daughter",
}

// sceneRule maps canonical speaker labels to a voice category; first match
// wins, unmatched labels take the table fallback.
type sceneRule struct {
	labels   []string
	category models.VoiceCategory
}

type sceneTable struct {
	rules    []sceneRule
	fallback models.VoiceCategory
}

var schoolPeerTable = sceneTable{
	rules: []sceneRule{
		{[]string{"M", "Man", "Boy"}, models.VoiceMaleYoungCasual},
		{[]string{"W", "Woman", "Girl"}, models.VoiceFemaleYoungCasual},
	},
	fallback: models.VoiceMaleYoungCasual,
}

var schoolTeacherTable = sceneTable{
	rules: []sceneRule{
		{[]string{"M", "Man"}, models.VoiceMaleAdultProfessional},
		{[]string{"W", "Woman"}, models.VoiceFemaleAdultProfessional},
	},
	fallback: models.VoiceMaleAdultProfessional,
}

var sceneTables = map[models.Scene]sceneTable{
	models.SceneMedical: {
		rules: []sceneRule{
			{[]string{"M", "Man"}, models.VoiceMaleAdultProfessional},
			{[]string{"W", "Woman"}, models.VoiceFemaleAdultFriendly},
		},
		fallback: models.VoiceMaleAdultWarm,
	},
	models.SceneShopping: {
		rules: []sceneRule{
			{[]string{"M", "Man"}, models.VoiceMaleAdultFriendly},
			{[]string{"W", "Woman"}, models.VoiceFemaleAdultFriendly},
		},
		fallback: models.VoiceFemaleAdultFriendly,
	},
	models.SceneFamily: {
		rules: []sceneRule{
			{[]string{"M", "Man"}, models.VoiceMaleAdultWarm},
			{[]string{"W", "Woman"}, models.VoiceFemaleAdultFriendly},
			{[]string{"Boy"}, models.VoiceMaleYoungCasual},
			{[]string{"Girl"}, models.VoiceFemaleYoungCasual},
		},
		fallback: models.VoiceMaleAdultWarm,
	},
	models.SceneRestaurant: {
		rules: []sceneRule{
			{[]string{"M", "Man"}, models.VoiceMaleAdultFriendly},
			{[]string{"W", "Woman"}, models.VoiceFemaleAdultFriendly},
		},
		fallback: models.VoiceFemaleAdultFriendly,
	},
	models.SceneGeneral: {
		rules: []sceneRule{
			{[]string{"M", "Man", "Boy"}, models.VoiceMaleAdultWarm},
			{[]string{"W", "Woman", "Girl"}, models.VoiceFemaleAdultFriendly},
		},
		fallback: models.VoiceMaleAdultWarm,
	},
}

func (t sceneTable) lookup(label string) models.VoiceCategory {
	for _, r := range t.rules {
		for _, l := range r.labels {
			if label == l {
				return r.category
			}
		}
	}
	return t.fallback
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// speaksAsTeacher reports whether any of the label's own utterances contains
// a teacher-speaking phrase.
func speaksAsTeacher(label string, turns []models.DialogueTurn) bool {
	for _, t := range turns {
		if t.Speaker != label {
			continue
		}
		if containsAny(strings.ToLower(t.Text), teacherSpeakingPhrases) {
			return true
		}
	}
	return false
}

// RuleAssign derives a voice for every speaker from the scene tables alone.
// The school scene distinguishes a speaker performing the teacher role from
// students merely discussing one; every other scene is a straight label
// lookup. Best effort: dialogues matching neither school phrase set default
// to peer voices.
func RuleAssign(scene models.Scene, turns []models.DialogueTurn) models.VoiceAssignment {
	labels := models.SpeakerOrder(turns)
	out := make(models.VoiceAssignment, len(labels))

	if scene == models.SceneSchool {
		var all strings.Builder
		for _, t := range turns {
			all.WriteString(strings.ToLower(t.Text))
			all.WriteByte('\n')
		}
		script := all.String()
		teacherPresent := containsAny(script, teacherSpeakingPhrases)
		studentReference := containsAny(script, studentReferencePhrases)

		switch {
		case studentReference && !teacherPresent:
			// Students discussing a teacher: peer dialogue.
			for _, l := range labels {
				out[l] = schoolPeerTable.lookup(l)
			}
		case teacherPresent:
			for _, l := range labels {
				if speaksAsTeacher(l, turns) {
					out[l] = schoolTeacherTable.lookup(l)
				} else {
					out[l] = schoolPeerTable.lookup(l)
				}
			}
		default:
			for _, l := range labels {
				out[l] = schoolPeerTable.lookup(l)
			}
		}
		return out
	}

	table, ok := sceneTables[scene]
	if !ok {
		table = sceneTables[models.SceneGeneral]
	}
	for _, l := range labels {
		out[l] = table.lookup(l)
	}
	return out
}

// CategoryForProfile maps a speaker profile onto a voice category.
func CategoryForProfile(p models.SpeakerProfile) models.VoiceCategory {
	young := p.IsYoung()
	if !young {
		role := strings.ToLower(p.Role)
		for _, kw := range childRoleKeywords {
			if strings.Contains(role, kw) {
				young = true
				break
			}
		}
	}

	emotion := strings.ToLower(p.Emotion)
	professional := emotion == "professional" || emotion == "formal"

	if young {
		if p.Gender == models.GenderFemale {
			return models.VoiceFemaleYoungCasual
		}
		return models.VoiceMaleYoungCasual
	}
	if p.Gender == models.GenderFemale {
		if professional {
			return models.VoiceFemaleAdultProfessional
		}
		return models.VoiceFemaleAdultFriendly
	}
	if professional {
		return models.VoiceMaleAdultProfessional
	}
	return models.VoiceMaleAdultWarm
}
