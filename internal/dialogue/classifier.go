package dialogue

import (
	"strings"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// Classify tags the script with the scene whose keyword set it matches best.
// A scene's score is the number of its keywords present in the lowercased
// script; only scenes clearing their own threshold compete, the highest score
// wins, and ties fall to the fixed priority order. Never fails: scripts
// matching nothing are tagged general.
func Classify(script string) models.Scene {
	lower := strings.ToLower(script)

	best := models.SceneGeneral
	bestScore := 0
	for _, scene := range scenePriority {
		score := 0
		for _, kw := range sceneKeywords[scene] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score >= sceneThresholds[scene] && score > bestScore {
			best = scene
			bestScore = score
		}
	}
	return best
}
