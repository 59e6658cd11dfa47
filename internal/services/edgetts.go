package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

// ---------------------------------------------------------------------------
// Edge TTS Backend
// Invokes the edge-tts CLI once per turn, addressing Microsoft neural voices
// by name. Needs network access but no API key. Second backend in the chain.
// ---------------------------------------------------------------------------

const (
	edgeTTSBin          = "edge-tts"
	edgeTTSDefaultVoice = "en-US-AriaNeural"
	edgeTTSTimeout      = 60 * time.Second
	edgeTTSProbeTimeout = 2 * time.Second
)

// edgeVoices resolves every built-in voice category to a named neural voice.
// The table is total over models.AllVoiceCategories.
var edgeVoices = map[models.VoiceCategory]string{
	models.VoiceMaleAdultDeep:           "en-US-GuyNeural",
	models.VoiceMaleAdultWarm:           "en-US-ChristopherNeural",
	models.VoiceMaleAdultProfessional:   "en-US-BrianNeural",
	models.VoiceMaleAdultFriendly:       "en-US-DavisNeural",
	models.VoiceFemaleAdultCalm:         "en-US-AriaNeural",
	models.VoiceFemaleAdultFriendly:     "en-US-JennyNeural",
	models.VoiceFemaleAdultProfessional: "en-US-MichelleNeural",
	models.VoiceMaleYoungCasual:         "en-US-EricNeural",
	models.VoiceMaleYoungEnergetic:      "en-US-JasonNeural",
	models.VoiceFemaleYoungCasual:       "en-US-MichelleNeural",
	models.VoiceFemaleYoungSweet:        "en-US-AriaNeural",
}

// ResolveEdgeVoice maps a voice token to the vendor voice name. Tokens
// outside the category table pass through verbatim, which is how caller
// overrides address vendor voices directly.
func ResolveEdgeVoice(token string) string {
	if v, ok := edgeVoices[models.VoiceCategory(token)]; ok {
		return v
	}
	if token == "" {
		return edgeTTSDefaultVoice
	}
	return token
}

// EdgeTTSService renders speech through the edge-tts subprocess.
type EdgeTTSService struct {
	speed   models.SpeedPreset
	timeout time.Duration
}

// Ensure EdgeTTSService implements SpeechBackend at compile time.
var _ SpeechBackend = (*EdgeTTSService)(nil)

func NewEdgeTTSService(speed models.SpeedPreset, timeout time.Duration) *EdgeTTSService {
	if timeout <= 0 {
		timeout = edgeTTSTimeout
	}
	return &EdgeTTSService{speed: speed, timeout: timeout}
}

func (s *EdgeTTSService) Name() string { return "edge-tts" }

func (s *EdgeTTSService) AudioFormat() string { return "mp3" }

// rateArg converts the speed preset into edge-tts's relative rate flag.
// The "--rate=" form is required: a bare "-20%" argument parses as a flag.
func rateArg(speed models.SpeedPreset) string {
	switch speed {
	case models.SpeedSlow:
		return "--rate=-20%"
	case models.SpeedFast:
		return "--rate=+20%"
	default:
		return ""
	}
}

// Probe checks that the edge-tts CLI is installed and answers.
func (s *EdgeTTSService) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(edgeTTSBin); err != nil {
		return fmt.Errorf("edge-tts not installed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, edgeTTSProbeTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, edgeTTSBin, "--version").Run(); err != nil {
		return fmt.Errorf("edge-tts --version failed: %w", err)
	}
	return nil
}

func (s *EdgeTTSService) SynthesizeTurn(ctx context.Context, req TurnRequest) error {
	return s.run(ctx, ResolveEdgeVoice(req.Voice), req.Text, req.OutputPath)
}

func (s *EdgeTTSService) SynthesizePlain(ctx context.Context, text, outputPath string) error {
	return s.run(ctx, edgeTTSDefaultVoice, text, outputPath)
}

func (s *EdgeTTSService) run(ctx context.Context, voice, text, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []string{"--voice", voice, "--text", text, "--write-media", outputPath}
	if r := rateArg(s.speed); r != "" {
		args = append(args, r)
	}

	log.Printf("[EdgeTTS] Generating speech (voice=%s, textLen=%d)", voice, len(text))

	cmd := exec.CommandContext(ctx, edgeTTSBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("edge-tts failed: %w (%s)", err, tailOf(stderr.String()))
	}
	return verifyAudioFile(outputPath)
}

// tailOf keeps the last line of subprocess stderr for error messages.
func tailOf(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 200 {
		s = s[len(s)-200:]
	}
	return s
}
