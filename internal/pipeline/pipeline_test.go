package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ssdgjs/TeacherQRcode/internal/models"
	"github.com/ssdgjs/TeacherQRcode/internal/services"
)

// fakeBackend records every synthesis call and writes "<name>:<text>" lines
// as fake audio so the media fakes have real files to concatenate.
type fakeBackend struct {
	name      string
	format    string
	probeErr  error
	failAfter int // error once this many turns were rendered; -1 = never
	plainErr  error

	mu     sync.Mutex
	turns  []services.TurnRequest
	plains []string
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, format: "wav", failAfter: -1}
}

func (b *fakeBackend) Name() string                    { return b.name }
func (b *fakeBackend) AudioFormat() string             { return b.format }
func (b *fakeBackend) Probe(ctx context.Context) error { return b.probeErr }

func (b *fakeBackend) SynthesizeTurn(ctx context.Context, req services.TurnRequest) error {
	b.mu.Lock()
	n := len(b.turns)
	b.turns = append(b.turns, req)
	b.mu.Unlock()
	if b.failAfter >= 0 && n >= b.failAfter {
		return errors.New("backend exploded")
	}
	return os.WriteFile(req.OutputPath, []byte(b.name+":"+req.Text+"\n"), 0644)
}

func (b *fakeBackend) SynthesizePlain(ctx context.Context, text, outputPath string) error {
	b.mu.Lock()
	b.plains = append(b.plains, text)
	b.mu.Unlock()
	if b.plainErr != nil {
		return b.plainErr
	}
	return os.WriteFile(outputPath, []byte(b.name+":"+text+"\n"), 0644)
}

// fakeMedia concatenates by appending file contents. copyErr and reencodeErr
// force the corresponding strategy to fail.
type fakeMedia struct {
	copyErr     error
	reencodeErr error

	mu       sync.Mutex
	copies   int
	reencode int
}

func (m *fakeMedia) ConcatCopy(ctx context.Context, inputs []string, listDir, outputPath string) error {
	m.mu.Lock()
	m.copies++
	m.mu.Unlock()
	if m.copyErr != nil {
		return m.copyErr
	}
	return concatFiles(inputs, outputPath)
}

func (m *fakeMedia) ConcatReencode(ctx context.Context, inputs []string, outputPath string) error {
	m.mu.Lock()
	m.reencode++
	m.mu.Unlock()
	if m.reencodeErr != nil {
		return m.reencodeErr
	}
	return concatFiles(inputs, outputPath)
}

func (m *fakeMedia) AudioDuration(ctx context.Context, path string) (int, error) {
	return 1234, nil
}

func concatFiles(inputs []string, outputPath string) error {
	var buf bytes.Buffer
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0644)
}

type fakeProfiler struct {
	profiles map[string]models.SpeakerProfile
	err      error

	mu    sync.Mutex
	calls int
}

func (p *fakeProfiler) AnalyzeSpeakers(ctx context.Context, scene models.Scene, turns []models.DialogueTurn) (map[string]models.SpeakerProfile, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.profiles, p.err
}

var (
	_ services.SpeechBackend   = (*fakeBackend)(nil)
	_ services.MediaService    = (*fakeMedia)(nil)
	_ services.ProfilerService = (*fakeProfiler)(nil)
)

func newTestService(t *testing.T, profiler services.ProfilerService, media services.MediaService, backends ...services.SpeechBackend) (svc *Service, outDir, tempDir string) {
	t.Helper()
	base := t.TempDir()
	outDir = filepath.Join(base, "out")
	tempDir = filepath.Join(base, "tmp")
	svc = NewService(services.NewBackendChain(backends...), profiler, media, outDir, tempDir, 2)
	return svc, outDir, tempDir
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}

func TestSynthesizeDialogue(t *testing.T) {
	alpha := newFakeBackend("alpha")
	svc, _, tempDir := newTestService(t, nil, &fakeMedia{}, alpha)

	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "M: Hello there.\nW: Hi, how are you?",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if res.JobID == uuid.Nil {
		t.Error("expected a job ID")
	}
	if res.Turns != 2 {
		t.Errorf("expected 2 turns, got %d", res.Turns)
	}
	if res.Backend != "alpha" {
		t.Errorf("expected backend alpha, got %q", res.Backend)
	}
	if res.Scene != models.SceneGeneral {
		t.Errorf("expected scene general, got %q", res.Scene)
	}
	if res.DurationMs != 1234 {
		t.Errorf("expected duration 1234, got %d", res.DurationMs)
	}
	if !strings.HasSuffix(res.OutputPath, ".mp3") {
		t.Errorf("expected .mp3 output, got %q", res.OutputPath)
	}

	if len(alpha.turns) != 2 {
		t.Fatalf("expected 2 rendered turns, got %d", len(alpha.turns))
	}
	if !strings.HasSuffix(alpha.turns[0].OutputPath, "seg_000.wav") ||
		!strings.HasSuffix(alpha.turns[1].OutputPath, "seg_001.wav") {
		t.Errorf("segments out of order: %q, %q", alpha.turns[0].OutputPath, alpha.turns[1].OutputPath)
	}
	if v := alpha.turns[0].Voice; v != "male-adult-warm" {
		t.Errorf("expected general-scene voice for M, got %q", v)
	}
	if v := alpha.turns[1].Voice; v != "female-adult-friendly" {
		t.Errorf("expected general-scene voice for W, got %q", v)
	}
	if alpha.turns[0].Seed != 1000 || alpha.turns[1].Seed != 2000 {
		t.Errorf("expected seeds 1000/2000, got %d/%d", alpha.turns[0].Seed, alpha.turns[1].Seed)
	}

	lines := readLines(t, res.OutputPath)
	want := []string{"alpha:Hello there.", "alpha:Hi, how are you?"}
	if len(lines) != len(want) || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("assembled output %v, want %v", lines, want)
	}

	assertDirEmpty(t, tempDir)
}

func TestSynthesizeSpeakerVoiceStable(t *testing.T) {
	alpha := newFakeBackend("alpha")
	svc, _, _ := newTestService(t, nil, &fakeMedia{}, alpha)

	_, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "M: One.\nW: Two.\nM: Three.",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(alpha.turns) != 3 {
		t.Fatalf("expected 3 rendered turns, got %d", len(alpha.turns))
	}
	if alpha.turns[0].Voice != alpha.turns[2].Voice {
		t.Errorf("speaker M changed voice mid-job: %q vs %q", alpha.turns[0].Voice, alpha.turns[2].Voice)
	}
	if alpha.turns[0].Seed != alpha.turns[2].Seed {
		t.Errorf("speaker M changed seed mid-job: %d vs %d", alpha.turns[0].Seed, alpha.turns[2].Seed)
	}
	if alpha.turns[0].Seed == alpha.turns[1].Seed {
		t.Error("distinct speakers share a seed")
	}
}

func TestSynthesizeFallbackRestartsAllTurns(t *testing.T) {
	alpha := newFakeBackend("alpha")
	alpha.failAfter = 1 // dies on the second turn
	beta := newFakeBackend("beta")
	svc, _, tempDir := newTestService(t, nil, &fakeMedia{}, alpha, beta)

	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "M: One.\nW: Two.\nM: Three.",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if res.Backend != "beta" {
		t.Errorf("expected fallback to beta, got %q", res.Backend)
	}
	if len(alpha.turns) != 2 {
		t.Errorf("expected alpha abandoned after 2 attempts, got %d", len(alpha.turns))
	}
	if len(beta.turns) != 3 {
		t.Fatalf("expected beta to restart all 3 turns, got %d", len(beta.turns))
	}
	if beta.turns[0].Text != "One." {
		t.Errorf("restart did not begin at the first turn: %q", beta.turns[0].Text)
	}

	for _, line := range readLines(t, res.OutputPath) {
		if !strings.HasPrefix(line, "beta:") {
			t.Errorf("output mixes segments from another backend: %q", line)
		}
	}

	assertDirEmpty(t, tempDir)
}

func TestSynthesizeChainExhausted(t *testing.T) {
	alpha := newFakeBackend("alpha")
	alpha.failAfter = 0
	beta := newFakeBackend("beta")
	beta.failAfter = 0
	svc, outDir, tempDir := newTestService(t, nil, &fakeMedia{}, alpha, beta)

	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "M: Hello.\nW: Hi.",
	})
	if err == nil {
		t.Fatal("expected an error when every backend fails")
	}
	if !errors.Is(err, services.ErrChainExhausted) {
		t.Errorf("expected ErrChainExhausted, got %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}

	// A failed job leaves nothing behind.
	assertDirEmpty(t, outDir)
	assertDirEmpty(t, tempDir)
}

func TestSynthesizeNoBackendAvailable(t *testing.T) {
	alpha := newFakeBackend("alpha")
	alpha.probeErr = errors.New("connection refused")
	svc, _, _ := newTestService(t, nil, &fakeMedia{}, alpha)

	_, err := svc.Synthesize(context.Background(), models.SynthesisRequest{Script: "M: Hello."})
	if !errors.Is(err, services.ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
}

func TestSynthesizePlain(t *testing.T) {
	alpha := newFakeBackend("alpha")
	media := &fakeMedia{}
	svc, _, tempDir := newTestService(t, nil, media, alpha)

	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "Just a plain sentence without any markers.\n",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if res.Turns != 0 {
		t.Errorf("expected 0 turns, got %d", res.Turns)
	}
	if res.Scene != models.SceneGeneral {
		t.Errorf("expected scene general, got %q", res.Scene)
	}
	if !strings.Contains(res.Message, "plain") {
		t.Errorf("expected a plain-synthesis message, got %q", res.Message)
	}
	if len(alpha.plains) != 1 || alpha.plains[0] != "Just a plain sentence without any markers." {
		t.Errorf("unexpected plain calls: %v", alpha.plains)
	}
	if len(alpha.turns) != 0 {
		t.Errorf("plain path must not render turns, got %d", len(alpha.turns))
	}
	// wav output into an .mp3 target goes through the re-encode.
	if media.reencode != 1 {
		t.Errorf("expected 1 re-encode conversion, got %d", media.reencode)
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Errorf("output file missing: %v", err)
	}

	assertDirEmpty(t, tempDir)
}

func TestSynthesizePlainFallsBack(t *testing.T) {
	alpha := newFakeBackend("alpha")
	alpha.plainErr = errors.New("server down")
	beta := newFakeBackend("beta")
	svc, _, _ := newTestService(t, nil, &fakeMedia{}, alpha, beta)

	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "No dialogue markers here.",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if res.Backend != "beta" {
		t.Errorf("expected fallback to beta, got %q", res.Backend)
	}
	if len(alpha.plains) != 1 || len(beta.plains) != 1 {
		t.Errorf("expected one plain attempt per backend, got %d/%d", len(alpha.plains), len(beta.plains))
	}
}

func TestSynthesizeSceneOverride(t *testing.T) {
	alpha := newFakeBackend("alpha")
	svc, _, _ := newTestService(t, nil, &fakeMedia{}, alpha)

	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script:        "M: The homework for this class is hard.\nW: The teacher said so.",
		SceneOverride: "restaurant",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if res.Scene != models.SceneRestaurant {
		t.Errorf("expected overridden scene restaurant, got %q", res.Scene)
	}
	// Decoding params follow the overridden scene.
	if got := alpha.turns[0].Params.TopK; got != 22 {
		t.Errorf("expected restaurant top_k 22, got %d", got)
	}
}

func TestSynthesizeSceneOverrideUnknown(t *testing.T) {
	alpha := newFakeBackend("alpha")
	svc, _, tempDir := newTestService(t, nil, &fakeMedia{}, alpha)

	_, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script:        "M: Hello.",
		SceneOverride: "park",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown scene") {
		t.Fatalf("expected unknown scene error, got %v", err)
	}
	if len(alpha.turns) != 0 {
		t.Errorf("nothing should render on a bad request, got %d turns", len(alpha.turns))
	}
	assertDirEmpty(t, tempDir)
}

func TestSynthesizeVoiceOverride(t *testing.T) {
	alpha := newFakeBackend("alpha")
	svc, _, _ := newTestService(t, nil, &fakeMedia{}, alpha)

	_, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script:         "M: Hello.\nW: Hi.",
		VoiceOverrides: map[string]string{"M": "en-GB-RyanNeural"},
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if v := alpha.turns[0].Voice; v != "en-GB-RyanNeural" {
		t.Errorf("override not applied, got %q", v)
	}
	if v := alpha.turns[1].Voice; v != "female-adult-friendly" {
		t.Errorf("unoverridden label should keep its computed voice, got %q", v)
	}
}

func TestSynthesizeProfilerApplied(t *testing.T) {
	alpha := newFakeBackend("alpha")
	profiler := &fakeProfiler{profiles: map[string]models.SpeakerProfile{
		"M": {AgeGroup: models.AgeAdult, Gender: models.GenderMale, Role: "manager", Emotion: "professional"},
	}}
	svc, _, _ := newTestService(t, profiler, &fakeMedia{}, alpha)

	_, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "M: Hello.\nW: Hi.",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if profiler.calls != 1 {
		t.Errorf("expected 1 profiler call, got %d", profiler.calls)
	}
	if v := alpha.turns[0].Voice; v != "male-adult-professional" {
		t.Errorf("profile not applied to M, got %q", v)
	}
	if v := alpha.turns[1].Voice; v != "female-adult-friendly" {
		t.Errorf("unprofiled label should keep its scene voice, got %q", v)
	}
}

func TestSynthesizeProfilerFailureFallsBackToRules(t *testing.T) {
	alpha := newFakeBackend("alpha")
	profiler := &fakeProfiler{err: errors.New("model unavailable")}
	svc, _, _ := newTestService(t, profiler, &fakeMedia{}, alpha)

	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "M: Hello.\nW: Hi.",
	})
	if err != nil {
		t.Fatalf("profiler failure must not fail the job: %v", err)
	}
	if profiler.calls != 1 {
		t.Errorf("expected 1 profiler call, got %d", profiler.calls)
	}
	if v := alpha.turns[0].Voice; v != "male-adult-warm" {
		t.Errorf("expected rule-based voice for M, got %q", v)
	}
	if res.Turns != 2 {
		t.Errorf("expected 2 turns, got %d", res.Turns)
	}
}

func TestSynthesizeReencodeFallback(t *testing.T) {
	alpha := newFakeBackend("alpha")
	media := &fakeMedia{copyErr: errors.New("could not write header")}
	svc, _, _ := newTestService(t, nil, media, alpha)

	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "M: Hello.\nW: Hi.",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if media.copies != 1 || media.reencode != 1 {
		t.Errorf("expected copy then re-encode, got copies=%d reencode=%d", media.copies, media.reencode)
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestSynthesizeAssemblyFailureIsFatal(t *testing.T) {
	alpha := newFakeBackend("alpha")
	beta := newFakeBackend("beta")
	media := &fakeMedia{
		copyErr:     errors.New("could not write header"),
		reencodeErr: errors.New("decode failed"),
	}
	svc, outDir, tempDir := newTestService(t, nil, media, alpha, beta)

	_, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script: "M: Hello.\nW: Hi.",
	})
	if err == nil || !strings.Contains(err.Error(), "assemble") {
		t.Fatalf("expected assembly error, got %v", err)
	}
	// Assembly failure is not a backend failure; the chain must not restart.
	if len(beta.turns) != 0 {
		t.Errorf("assembly failure restarted the job on beta (%d turns)", len(beta.turns))
	}
	assertDirEmpty(t, outDir)
	assertDirEmpty(t, tempDir)
}

func TestSynthesizeEmptyScript(t *testing.T) {
	alpha := newFakeBackend("alpha")
	svc, _, _ := newTestService(t, nil, &fakeMedia{}, alpha)

	for _, script := range []string{"", "   \n\n\t"} {
		if _, err := svc.Synthesize(context.Background(), models.SynthesisRequest{Script: script}); err == nil {
			t.Errorf("expected error for empty script %q", script)
		}
	}
}

func TestSynthesizeCustomOutputPath(t *testing.T) {
	alpha := newFakeBackend("alpha")
	svc, _, _ := newTestService(t, nil, &fakeMedia{}, alpha)

	target := filepath.Join(t.TempDir(), "nested", "result.mp3")
	res, err := svc.Synthesize(context.Background(), models.SynthesisRequest{
		Script:     "M: Hello.\nW: Hi.",
		OutputPath: target,
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if res.OutputPath != target {
		t.Errorf("expected output at %q, got %q", target, res.OutputPath)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestSynthesizeBatch(t *testing.T) {
	alpha := newFakeBackend("alpha")
	svc, _, tempDir := newTestService(t, nil, &fakeMedia{}, alpha)

	reqs := []models.SynthesisRequest{
		{Script: "M: First job.\nW: Sure."},
		{Script: "   "}, // invalid, must not stop the others
		{Script: "M: Third job.\nW: Fine."},
	}

	results, err := svc.SynthesizeBatch(context.Background(), reqs)
	if err == nil || !strings.Contains(err.Error(), "script 2") {
		t.Fatalf("expected the failing script's error, got %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 result slots, got %d", len(results))
	}
	if results[0] == nil || results[2] == nil {
		t.Fatal("healthy jobs should have results")
	}
	if results[1] != nil {
		t.Errorf("failed job should have a nil result, got %+v", results[1])
	}
	if results[0].OutputPath == results[2].OutputPath {
		t.Error("jobs must not share an output path")
	}
	for _, i := range []int{0, 2} {
		if _, err := os.Stat(results[i].OutputPath); err != nil {
			t.Errorf("output %d missing: %v", i, err)
		}
	}
	assertDirEmpty(t, tempDir)
}
