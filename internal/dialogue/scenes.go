package dialogue

import "github.com/ssdgjs/TeacherQRcode/internal/models"

// Scene keyword sets, matched as literal substrings against the lowercased
// script.
var sceneKeywords = map[models.Scene][]string{
	models.SceneSchool: {
		"class", "teacher", "student", "homework", "school", "exam",
		"lesson", "mr.", "ms.", "professor", "finish", "easy", "learn",
	},
	models.SceneMedical: {
		"doctor", "patient", "medicine", "hospital", "pain", "symptom",
		"fever", "headache",
	},
	models.SceneShopping: {
		"buy", "sell", "price", "shop", "store", "how much", "dollars",
		"cashier",
	},
	models.SceneFamily: {
		"mom", "dad", "parent", "child", "son", "daughter", "home",
	},
	models.SceneRestaurant: {
		"order", "menu", "waiter", "waitress", "food", "drink", "table",
	},
}

// Detection thresholds. Classroom vocabulary is distinctive enough that one
// hit is reliable; the other domains need a second corroborating keyword.
var sceneThresholds = map[models.Scene]int{
	models.SceneSchool:     1,
	models.SceneMedical:    2,
	models.SceneShopping:   2,
	models.SceneFamily:     2,
	models.SceneRestaurant: 2,
}

// scenePriority breaks score ties between scenes that both clear their
// thresholds.
var scenePriority = []models.Scene{
	models.SceneSchool,
	models.SceneMedical,
	models.SceneShopping,
	models.SceneFamily,
	models.SceneRestaurant,
}

var sceneDecoding = map[models.Scene]models.DecodingParams{
	models.SceneGeneral:    {Temperature: 0.3, TopP: 0.7, TopK: 20, RepetitionPenalty: 1.05},
	models.SceneSchool:     {Temperature: 0.25, TopP: 0.65, TopK: 15, RepetitionPenalty: 1.03},
	models.SceneMedical:    {Temperature: 0.3, TopP: 0.7, TopK: 20, RepetitionPenalty: 1.05},
	models.SceneShopping:   {Temperature: 0.4, TopP: 0.8, TopK: 25, RepetitionPenalty: 1.02},
	models.SceneFamily:     {Temperature: 0.35, TopP: 0.75, TopK: 20, RepetitionPenalty: 1.0},
	models.SceneRestaurant: {Temperature: 0.35, TopP: 0.75, TopK: 22, RepetitionPenalty: 1.03},
}

// SceneParams returns the generative decoding parameters for a scene, with
// the general set as the default.
func SceneParams(scene models.Scene) models.DecodingParams {
	if p, ok := sceneDecoding[scene]; ok {
		return p
	}
	return sceneDecoding[models.SceneGeneral]
}
