package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ssdgjs/TeacherQRcode/internal/dialogue"
	"github.com/ssdgjs/TeacherQRcode/internal/models"
	"github.com/ssdgjs/TeacherQRcode/internal/services"
	"github.com/ssdgjs/TeacherQRcode/internal/voice"
	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// Pipeline: drives one synthesis job end to end
// Parse, classify, profile, assign voices, synthesize, assemble. The
// orchestrator owns the backend fallback walk (whole-job restart on the next
// backend, segments from different backends are never mixed) and the
// plain-synthesis path for scripts without dialogue markers.
// ---------------------------------------------------------------------------

type Service struct {
	chain     *services.BackendChain
	profiler  services.ProfilerService // Optional: nil = rule-based voices only
	media     services.MediaService
	outputDir string
	tempDir   string
	jobSem    chan struct{} // Limits concurrent jobs in SynthesizeBatch
}

func NewService(
	chain *services.BackendChain,
	profiler services.ProfilerService,
	media services.MediaService,
	outputDir, tempDir string,
	maxConcurrentJobs int,
) *Service {
	if maxConcurrentJobs < 1 {
		maxConcurrentJobs = 1
	}
	os.MkdirAll(outputDir, 0755)
	os.MkdirAll(tempDir, 0755)

	return &Service{
		chain:     chain,
		profiler:  profiler,
		media:     media,
		outputDir: outputDir,
		tempDir:   tempDir,
		jobSem:    make(chan struct{}, maxConcurrentJobs),
	}
}

// Synthesize runs one job from raw script text to a single audio file.
// A non-nil error means no output file was written.
func (s *Service) Synthesize(ctx context.Context, req models.SynthesisRequest) (*models.SynthesisResult, error) {
	job := &models.SynthesisJob{
		ID:        uuid.New(),
		Script:    req.Script,
		Scene:     models.SceneGeneral,
		Status:    models.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	// Validate the request up front; a typo should fail before any audio is
	// rendered, not after.
	if strings.TrimSpace(req.Script) == "" {
		return nil, s.fail(job, fmt.Errorf("empty script"))
	}
	var sceneOverride models.Scene
	if req.SceneOverride != "" {
		sc, ok := models.ParseScene(req.SceneOverride)
		if !ok {
			return nil, s.fail(job, fmt.Errorf("unknown scene %q", req.SceneOverride))
		}
		sceneOverride = sc
	}

	job.OutputPath = req.OutputPath
	if job.OutputPath == "" {
		job.OutputPath = filepath.Join(s.outputDir, fmt.Sprintf("dialogue_%s.mp3", job.ID))
	}

	// Per-turn segments and the staged output live in a job-owned temp dir,
	// removed on every exit path. A failed job leaves no partial output.
	jobDir := filepath.Join(s.tempDir, "job_"+job.ID.String())
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, s.fail(job, fmt.Errorf("failed to create job dir: %w", err))
	}
	defer os.RemoveAll(jobDir)

	log.Printf("[Pipeline] job %s started (script %d bytes)", job.ID, len(req.Script))

	job.Status = models.JobStatusParsing
	job.Turns = dialogue.Parse(req.Script)

	backends := s.chain.Available(ctx)
	if len(backends) == 0 {
		return nil, s.fail(job, services.ErrNoBackend)
	}

	if len(job.Turns) == 0 {
		log.Printf("[Pipeline] job %s: no dialogue markers, using plain synthesis", job.ID)
		job.Status = models.JobStatusPlain
		return s.runPlain(ctx, job, backends, jobDir)
	}

	job.Status = models.JobStatusClassifying
	if sceneOverride != "" {
		job.Scene = sceneOverride
	} else {
		job.Scene = dialogue.Classify(req.Script)
	}
	log.Printf("[Pipeline] job %s: %d turns, scene=%s", job.ID, len(job.Turns), job.Scene)

	job.Status = models.JobStatusProfiling
	job.Profiles = s.profileSpeakers(ctx, job)

	job.Status = models.JobStatusAssigning
	job.Voices = voice.Assign(job.Scene, job.Turns, job.Profiles, req.VoiceOverrides)

	return s.runDialogue(ctx, job, backends, jobDir)
}

// SynthesizeBatch runs the requests as concurrent isolated jobs, at most
// MaxConcurrentJobs at a time. results[i] corresponds to reqs[i] and is nil
// when that job failed; the first failure is returned after every job has
// finished. One bad script does not stop the others.
func (s *Service) SynthesizeBatch(ctx context.Context, reqs []models.SynthesisRequest) ([]*models.SynthesisResult, error) {
	results := make([]*models.SynthesisResult, len(reqs))

	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			select {
			case s.jobSem <- struct{}{}:
				// Acquired slot
			case <-ctx.Done():
				return fmt.Errorf("job cancelled while waiting for slot: %w", ctx.Err())
			}
			defer func() { <-s.jobSem }()

			res, err := s.Synthesize(ctx, req)
			if err != nil {
				return fmt.Errorf("script %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// profileSpeakers runs the AI profiler when one is configured. Any failure
// (network, malformed JSON, empty accepted set) falls back to rule-based
// assignment by returning nil; partial results are never used.
func (s *Service) profileSpeakers(ctx context.Context, job *models.SynthesisJob) map[string]models.SpeakerProfile {
	if s.profiler == nil {
		return nil
	}
	profiles, err := s.profiler.AnalyzeSpeakers(ctx, job.Scene, job.Turns)
	if err != nil {
		log.Printf("[Pipeline] job %s: profiling failed, using rule-based voices: %v", job.ID, err)
		return nil
	}
	log.Printf("[Pipeline] job %s: profiled %d speakers", job.ID, len(profiles))
	return profiles
}

// runDialogue renders the turns on each available backend in order until one
// completes the whole job, then assembles the segments. Assembly failures
// are fatal; they do not restart the job on the next backend.
func (s *Service) runDialogue(ctx context.Context, job *models.SynthesisJob, backends []services.SpeechBackend, jobDir string) (*models.SynthesisResult, error) {
	// Each distinct speaker keeps one seed for the whole job so the
	// generative backend renders them with a stable voice character.
	order := models.SpeakerOrder(job.Turns)
	seeds := make(map[string]int, len(order))
	for i, label := range order {
		seeds[label] = services.SeedForSpeaker(i)
	}
	params := dialogue.SceneParams(job.Scene)

	var lastErr error
	for _, backend := range backends {
		job.Status = models.JobStatusSynthesizing
		job.Backend = backend.Name()

		segments, err := s.renderTurns(ctx, job, backend, seeds, params, jobDir)
		if err != nil {
			lastErr = &services.BackendError{Backend: backend.Name(), Err: err}
			log.Printf("[Pipeline] job %s: %v, trying next backend", job.ID, lastErr)
			if ctx.Err() != nil {
				// Cancellation is not a backend failure; stop walking the chain.
				break
			}
			continue
		}

		job.Status = models.JobStatusAssembling
		if err := s.assemble(ctx, job, segments, jobDir); err != nil {
			return nil, s.fail(job, err)
		}

		job.Status = models.JobStatusCompleted
		return s.finish(ctx, job, fmt.Sprintf("synthesized %d turns via %s", len(job.Turns), backend.Name())), nil
	}

	return nil, s.fail(job, fmt.Errorf("%w: %v", services.ErrChainExhausted, lastErr))
}

// renderTurns renders every turn through one backend, sequentially in script
// order. Segments go to a per-backend dir so a restarted job can never pick
// up files from an abandoned attempt. Any failed turn abandons the backend.
func (s *Service) renderTurns(ctx context.Context, job *models.SynthesisJob, backend services.SpeechBackend, seeds map[string]int, params models.DecodingParams, jobDir string) ([]string, error) {
	segDir := filepath.Join(jobDir, backend.Name())
	if err := os.MkdirAll(segDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create segment dir: %w", err)
	}

	segments := make([]string, 0, len(job.Turns))
	for _, turn := range job.Turns {
		seg := filepath.Join(segDir, fmt.Sprintf("seg_%03d.%s", turn.Index, backend.AudioFormat()))
		req := services.TurnRequest{
			Text:       turn.Text,
			Voice:      string(job.Voices[turn.Speaker]),
			Seed:       seeds[turn.Speaker],
			Params:     params,
			OutputPath: seg,
		}
		if err := backend.SynthesizeTurn(ctx, req); err != nil {
			return nil, fmt.Errorf("turn %d (%s): %w", turn.Index, turn.Speaker, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// assemble concatenates the ordered segments into the final file. Stream
// copy first; the concat filter re-encode covers mismatched containers (wav
// segments into an .mp3 target). The result is staged inside the job dir and
// moved to the output path only on success.
func (s *Service) assemble(ctx context.Context, job *models.SynthesisJob, segments []string, jobDir string) error {
	staged := filepath.Join(jobDir, "assembled"+outputExt(job.OutputPath))

	if err := s.media.ConcatCopy(ctx, segments, jobDir, staged); err != nil {
		log.Printf("[Pipeline] job %s: stream copy failed, re-encoding: %v", job.ID, err)
		if err := s.media.ConcatReencode(ctx, segments, staged); err != nil {
			return fmt.Errorf("failed to assemble audio: %w", err)
		}
	}

	return moveFile(staged, job.OutputPath)
}

// runPlain renders the whole script with one default voice. Used when the
// parser finds no dialogue markers; the same backend order and whole-job
// fallback apply.
func (s *Service) runPlain(ctx context.Context, job *models.SynthesisJob, backends []services.SpeechBackend, jobDir string) (*models.SynthesisResult, error) {
	text := strings.TrimSpace(job.Script)

	var lastErr error
	for _, backend := range backends {
		job.Backend = backend.Name()
		staged := filepath.Join(jobDir, "plain."+backend.AudioFormat())

		if err := backend.SynthesizePlain(ctx, text, staged); err != nil {
			lastErr = &services.BackendError{Backend: backend.Name(), Err: err}
			log.Printf("[Pipeline] job %s: %v, trying next backend", job.ID, lastErr)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		// The backend wrote its native container; re-encode when the target
		// extension differs so the output matches its name.
		if ext := outputExt(job.OutputPath); ext != "."+backend.AudioFormat() {
			converted := filepath.Join(jobDir, "plain_converted"+ext)
			if err := s.media.ConcatReencode(ctx, []string{staged}, converted); err != nil {
				return nil, s.fail(job, fmt.Errorf("failed to convert plain audio: %w", err))
			}
			staged = converted
		}
		if err := moveFile(staged, job.OutputPath); err != nil {
			return nil, s.fail(job, err)
		}

		job.Status = models.JobStatusCompleted
		return s.finish(ctx, job, fmt.Sprintf("plain synthesis via %s", backend.Name())), nil
	}

	return nil, s.fail(job, fmt.Errorf("%w: %v", services.ErrChainExhausted, lastErr))
}

// finish fills the result for a completed job. Duration is best-effort; a
// probe failure never fails a job that already produced its file.
func (s *Service) finish(ctx context.Context, job *models.SynthesisJob, message string) *models.SynthesisResult {
	res := &models.SynthesisResult{
		JobID:      job.ID,
		OutputPath: job.OutputPath,
		Scene:      job.Scene,
		Backend:    job.Backend,
		Turns:      len(job.Turns),
		Message:    message,
	}
	if ms, err := s.media.AudioDuration(ctx, job.OutputPath); err != nil {
		log.Printf("[Pipeline] job %s: could not measure duration: %v", job.ID, err)
	} else {
		res.DurationMs = ms
	}
	log.Printf("[Pipeline] job %s completed: %s (backend=%s)", job.ID, job.OutputPath, job.Backend)
	return res
}

func (s *Service) fail(job *models.SynthesisJob, err error) error {
	job.Status = models.JobStatusFailed
	log.Printf("[Pipeline] job %s failed: %v", job.ID, err)
	return err
}

// outputExt is the extension the final file should carry, defaulting to mp3
// when the caller gave a bare path.
func outputExt(outputPath string) string {
	if ext := filepath.Ext(outputPath); ext != "" {
		return ext
	}
	return ".mp3"
}

// moveFile renames src to dst, copying when the rename fails (the temp dir
// and the output dir may sit on different mounts).
func moveFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to move output: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy output: %w", err)
	}
	return out.Close()
}
