package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ssdgjs/TeacherQRcode/internal/config"
	"github.com/ssdgjs/TeacherQRcode/internal/models"
	"github.com/ssdgjs/TeacherQRcode/internal/pipeline"
	"github.com/ssdgjs/TeacherQRcode/internal/services"
	"github.com/ssdgjs/TeacherQRcode/internal/voice"
)

func main() {
	var (
		outPath    = flag.String("out", "", "output file (single script only; default derived from the script name)")
		scene      = flag.String("scene", "", "force the scene instead of classifying (school, medical, shopping, family, restaurant, general)")
		speed      = flag.String("speed", "", "speech speed preset: slow, normal or fast (default from SPEECH_SPEED)")
		voices     = flag.String("voices", "", `voice overrides, "M=en-US-GuyNeural,W=female-young-casual" or a JSON object`)
		listVoices = flag.Bool("list-voices", false, "print the voice catalog and backend availability, then exit")
	)
	flag.Parse()

	log.Println("Starting dialoguetts...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *speed != "" {
		preset, ok := models.ParseSpeedPreset(*speed)
		if !ok {
			log.Fatalf("Invalid -speed %q: must be slow, normal or fast", *speed)
		}
		cfg.SpeechSpeed = preset
	}

	overrides, err := parseVoiceOverrides(*voices)
	if err != nil {
		log.Fatalf("Invalid -voices: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Synthesis backends in preference order: ChatTTS, then edge-tts, then
	// espeak. Each is probed once on first use; unhealthy backends are skipped.
	chain := services.NewBackendChain(
		services.NewChatTTSService(cfg.ChatTTSURL),
		services.NewEdgeTTSService(cfg.SpeechSpeed, cfg.SynthTimeout),
		services.NewEspeakService(),
	)

	if *listVoices {
		printVoiceCatalog(ctx, chain)
		return
	}

	// Initialize profiler provider: OpenAI-compatible preferred, Gemini as the
	// alternative, rule-based voices when neither is configured.
	var profiler services.ProfilerService
	provider := cfg.ProfilerProvider
	if provider == "" {
		switch {
		case cfg.OpenAIKey != "":
			provider = "openai"
		case cfg.GeminiKey != "":
			provider = "gemini"
		default:
			provider = "none"
		}
	}
	switch provider {
	case "openai":
		profiler = services.NewOpenAIProfilerService(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.ProfilerModel)
		log.Println("Profiler provider: OpenAI-compatible chat completions")
	case "gemini":
		profiler = services.NewGeminiProfilerService(cfg.GeminiKey, cfg.GeminiModel)
		log.Println("Profiler provider: Gemini")
	default:
		log.Println("Profiler disabled, voices follow scene rules")
	}

	svc := pipeline.NewService(chain, profiler, services.NewFFmpegService(), cfg.OutputDir, cfg.TempDir, cfg.MaxConcurrentJobs)

	reqs, err := buildRequests(flag.Args(), *outPath, *scene, overrides, cfg.OutputDir)
	if err != nil {
		log.Fatalf("%v", err)
	}

	results, err := svc.SynthesizeBatch(ctx, reqs)
	for i, res := range results {
		if res != nil {
			log.Printf("[%d/%d] %s (scene=%s, turns=%d, %dms, backend=%s)",
				i+1, len(results), res.OutputPath, res.Scene, res.Turns, res.DurationMs, res.Backend)
		}
	}
	if err != nil {
		log.Fatalf("Synthesis failed: %v", err)
	}
}

// buildRequests turns the CLI arguments into one request per script. With no
// file arguments the script is read from stdin.
func buildRequests(files []string, outPath, scene string, overrides map[string]string, outputDir string) ([]models.SynthesisRequest, error) {
	if outPath != "" && len(files) > 1 {
		return nil, fmt.Errorf("-out is only valid with a single script")
	}

	if len(files) == 0 {
		log.Println("Reading script from stdin...")
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []models.SynthesisRequest{{
			Script:         string(data),
			OutputPath:     outPath,
			VoiceOverrides: overrides,
			SceneOverride:  scene,
		}}, nil
	}

	reqs := make([]models.SynthesisRequest, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		out := outPath
		if out == "" {
			stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			out = filepath.Join(outputDir, stem+".mp3")
		}
		reqs = append(reqs, models.SynthesisRequest{
			Script:         string(data),
			OutputPath:     out,
			VoiceOverrides: overrides,
			SceneOverride:  scene,
		})
	}
	return reqs, nil
}

// parseVoiceOverrides accepts a JSON object or a comma list of label=voice
// pairs. Values may be built-in categories or vendor voice names.
func parseVoiceOverrides(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if strings.HasPrefix(s, "{") {
		out := map[string]string{}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("bad JSON: %w", err)
		}
		return out, nil
	}

	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		label, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("bad override %q, want label=voice", pair)
		}
		out[strings.TrimSpace(label)] = strings.TrimSpace(v)
	}
	return out, nil
}

// printVoiceCatalog lists the built-in voice categories, the neural voice
// each resolves to, and which backends answered their probe.
func printVoiceCatalog(ctx context.Context, chain *services.BackendChain) {
	fmt.Println("Voice categories:")
	for _, v := range voice.Catalog() {
		fmt.Printf("  %-26s %-24s %s\n", v.Category, services.ResolveEdgeVoice(string(v.Category)), v.Description)
	}

	fmt.Println("\nBackends:")
	for _, st := range chain.Report(ctx) {
		if st.Available {
			fmt.Printf("  %-10s available\n", st.Name)
		} else {
			fmt.Printf("  %-10s unavailable (%s)\n", st.Name, st.Detail)
		}
	}
}
