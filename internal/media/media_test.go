package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractFramesMissingSource(t *testing.T) {
	_, err := ExtractFrames(context.Background(), "/nonexistent/video.mp4", t.TempDir(), 10)
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("err = %T, want *ExtractionError", err)
	}
	if extErr.Source != "/nonexistent/video.mp4" {
		t.Errorf("Source = %s", extErr.Source)
	}
}

func TestExtractFramesInvalidRate(t *testing.T) {
	for _, fps := range []int{0, -5} {
		_, err := ExtractFrames(context.Background(), "video.mp4", t.TempDir(), fps)
		var extErr *ExtractionError
		if !errors.As(err, &extErr) {
			t.Errorf("fps=%d: err = %v, want *ExtractionError", fps, err)
		}
	}
}

func TestComposeVideoEmptyDir(t *testing.T) {
	err := ComposeVideo(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "out.mp4"), 10)
	if err == nil {
		t.Fatal("expected error for empty frames dir")
	}
	var compErr *ComposeError
	if !errors.As(err, &compErr) {
		t.Fatalf("err = %T, want *ComposeError", err)
	}
}

func TestListFramesSorted(t *testing.T) {
	dir := t.TempDir()

	// Created out of order; zero-padded names must list in temporal order.
	for _, name := range []string{"frame_00010.jpg", "frame_00002.jpg", "frame_00001.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	frames, err := ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames: %v", err)
	}

	want := []string{"frame_00001.jpg", "frame_00002.jpg", "frame_00010.jpg"}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, w := range want {
		if filepath.Base(frames[i]) != w {
			t.Errorf("frames[%d] = %s, want %s", i, filepath.Base(frames[i]), w)
		}
	}
}
