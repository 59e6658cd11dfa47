package dialogue

import (
	"regexp"
	"strings"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// turnMarker opens a new speaker turn: one or two uppercase letters or a
// capitalized word, a colon, whitespace, then the utterance.
var turnMarker = regexp.MustCompile(`^([A-Z]{1,2}|[A-Z][a-z]*):\s+(.+)$`)

// Parse splits raw script text into ordered speaker turns. Lines that do not
// open a turn are space-joined onto the currently open one; blank lines and
// text before the first marker are ignored. An empty result is not an error,
// it signals the single-voice fallback for scripts without dialogue markers.
func Parse(script string) []models.DialogueTurn {
	var turns []models.DialogueTurn
	var current *models.DialogueTurn

	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := turnMarker.FindStringSubmatch(line); m != nil {
			if text := strings.TrimSpace(m[2]); text != "" {
				if current != nil {
					turns = append(turns, *current)
				}
				current = &models.DialogueTurn{
					Index:   len(turns),
					Speaker: m[1],
					Text:    text,
				}
				continue
			}
		}

		if current != nil {
			current.Text += " " + line
		}
	}

	if current != nil {
		turns = append(turns, *current)
	}
	return turns
}
