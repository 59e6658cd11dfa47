package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// FFmpegService: audio assembly
// Concatenates ordered per-turn segments into one output file. Primary path
// is the concat demuxer with stream copy; when that fails (or the target
// container does not match the segment codec) the concat filter decodes and
// re-encodes instead.
// ---------------------------------------------------------------------------

const assembleTimeout = 30 * time.Second

// MediaService is the assembly contract the pipeline depends on.
type MediaService interface {
	// ConcatCopy joins segments without re-encoding. The concat list file is
	// written into listDir so concurrent jobs never collide.
	ConcatCopy(ctx context.Context, inputs []string, listDir, outputPath string) error
	// ConcatReencode decodes the segments and re-encodes them into the
	// container outputPath's extension selects. Also serves as a format
	// converter for a single input.
	ConcatReencode(ctx context.Context, inputs []string, outputPath string) error
	// AudioDuration returns the duration of an audio file in milliseconds.
	AudioDuration(ctx context.Context, path string) (int, error)
}

type FFmpegService struct{}

// Ensure FFmpegService implements MediaService at compile time.
var _ MediaService = (*FFmpegService)(nil)

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{}
}

func (s *FFmpegService) ConcatCopy(ctx context.Context, inputs []string, listDir, outputPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}

	ctx, cancel := context.WithTimeout(ctx, assembleTimeout)
	defer cancel()

	// Create a concat list file
	listPath := filepath.Join(listDir, "concat_list.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	for _, path := range inputs {
		// Write in FFmpeg concat format
		fmt.Fprintf(f, "file '%s'\n", path)
	}
	f.Close()
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy", // Copy without re-encoding
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat copy failed: %w", err)
	}
	return verifyAudioFile(outputPath)
}

func (s *FFmpegService) ConcatReencode(ctx context.Context, inputs []string, outputPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}

	ctx, cancel := context.WithTimeout(ctx, assembleTimeout)
	defer cancel()

	args := make([]string, 0, 2*len(inputs)+6)
	for _, path := range inputs {
		args = append(args, "-i", path)
	}

	// [0:a][1:a]...concat=n=N:v=0:a=1[aout]
	var filter strings.Builder
	for i := range inputs {
		fmt.Fprintf(&filter, "[%d:a]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=0:a=1[aout]", len(inputs))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[aout]",
		"-y",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat re-encode failed: %w", err)
	}
	return verifyAudioFile(outputPath)
}

// AudioDuration returns the duration of an audio file in milliseconds.
func (s *FFmpegService) AudioDuration(ctx context.Context, path string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return int(durationSec * 1000), nil
}
