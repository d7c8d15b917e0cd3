package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// framePattern names extracted frames so that lexical sort order equals
// temporal order.
const framePattern = "frame_%05d.jpg"

// ExtractFrames decodes a source video into still JPEG frames sampled at the
// given rate, written to framesDir. Returns the number of frames produced.
//
// On any failure the contents of framesDir must not be trusted.
func ExtractFrames(ctx context.Context, videoPath, framesDir string, fps int) (int, error) {
	if fps <= 0 {
		return 0, &ExtractionError{Source: videoPath, Err: fmt.Errorf("invalid sampling rate %d", fps)}
	}
	if _, err := os.Stat(videoPath); err != nil {
		return 0, &ExtractionError{Source: videoPath, Err: err}
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-q:v", "2",
		"-y",
		filepath.Join(framesDir, framePattern),
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, &ExtractionError{Source: videoPath, Err: fmt.Errorf("ffmpeg stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return 0, &ExtractionError{Source: videoPath, Err: fmt.Errorf("start ffmpeg: %w", err)}
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return 0, &ExtractionError{Source: videoPath, Err: ctx.Err()}
		}
		return 0, &ExtractionError{Source: videoPath, Err: fmt.Errorf("ffmpeg: %w", err)}
	}

	frames, err := ListFrames(framesDir)
	if err != nil {
		return 0, &ExtractionError{Source: videoPath, Err: err}
	}
	if len(frames) == 0 {
		return 0, &ExtractionError{Source: videoPath, Err: errors.New("no frames extracted")}
	}

	return len(frames), nil
}

// ListFrames returns the frame files in dir sorted lexically, which is
// temporal order under the extractor's naming scheme.
func ListFrames(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// ProbeDuration returns the source video's duration in seconds via ffprobe.
func ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}
