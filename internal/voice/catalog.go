package voice

import "github.com/ssdgjs/TeacherQRcode/internal/models"

// VoiceInfo describes one built-in voice token for listings.
type VoiceInfo struct {
	Category    models.VoiceCategory `json:"category"`
	Description string               `json:"description"`
}

var catalogDescriptions = map[models.VoiceCategory]string{
	models.VoiceMaleAdultDeep:           "adult male, deep",
	models.VoiceMaleAdultWarm:           "adult male, warm",
	models.VoiceMaleAdultProfessional:   "adult male, professional",
	models.VoiceMaleAdultFriendly:       "adult male, friendly",
	models.VoiceFemaleAdultCalm:         "adult female, calm",
	models.VoiceFemaleAdultFriendly:     "adult female, friendly",
	models.VoiceFemaleAdultProfessional: "adult female, professional",
	models.VoiceMaleYoungCasual:         "young male, casual",
	models.VoiceMaleYoungEnergetic:      "young male, energetic",
	models.VoiceFemaleYoungCasual:       "young female, casual",
	models.VoiceFemaleYoungSweet:        "young female, sweet",
}

// Catalog lists every built-in voice token with a short description, in
// enum order.
func Catalog() []VoiceInfo {
	cats := models.AllVoiceCategories()
	out := make([]VoiceInfo, 0, len(cats))
	for _, c := range cats {
		out = append(out, VoiceInfo{Category: c, Description: catalogDescriptions[c]})
	}
	return out
}
