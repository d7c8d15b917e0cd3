package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
)

// ComposeVideo re-encodes the annotated frame sequence in framesDir into a
// single video at outPath. H.264 in MP4 with yuv420p for broad player
// compatibility. fps must match the extraction sampling rate so playback
// timing corresponds to frameNumber/fps seconds.
func ComposeVideo(ctx context.Context, framesDir, outPath string, fps int) error {
	frames, err := ListFrames(framesDir)
	if err != nil {
		return &ComposeError{FramesDir: framesDir, Err: err}
	}
	if len(frames) == 0 {
		return &ComposeError{FramesDir: framesDir, Err: errors.New("no frames to compose")}
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", filepath.Join(framesDir, framePattern),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y",
		outPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ComposeError{FramesDir: framesDir, Err: fmt.Errorf("ffmpeg stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return &ComposeError{FramesDir: framesDir, Err: fmt.Errorf("start ffmpeg: %w", err)}
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return &ComposeError{FramesDir: framesDir, Err: ctx.Err()}
		}
		return &ComposeError{FramesDir: framesDir, Err: fmt.Errorf("ffmpeg: %w", err)}
	}

	return nil
}
