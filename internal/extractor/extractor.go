package extractor

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExtractFrames extracts a video into a per-video JPEG frame directory
// (frame_0001.jpg upwards) that the directory frame source serves from.
// fps > 0 samples at that rate; fps <= 0 keeps the native rate. Extraction
// is skipped when frames from a previous run already exist. Returns the
// frame directory path.
func ExtractFrames(videoPath, outputDir string, fps float64, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return "", fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	frameDir := filepath.Join(outputDir, VideoName(videoPath))

	if entries, err := os.ReadDir(frameDir); err == nil {
		count := 0
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
				count++
			}
		}
		if count > 0 {
			logger.Info("frames already extracted, skipping", "dir", frameDir, "frames", count)
			return frameDir, nil
		}
	}

	if err := os.MkdirAll(frameDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create frame directory '%s': %w", frameDir, err)
	}

	args := []string{"-i", videoPath}
	if fps > 0 {
		args = append(args, "-vf", fmt.Sprintf("fps=%g", fps))
	}
	args = append(args, "-q:v", "2", filepath.Join(frameDir, "frame_%04d.jpg"))

	logger.Info("extracting frames", "video", videoPath, "dir", frameDir, "fps", fps)
	cmd := exec.Command("ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return frameDir, nil
}

// VideoName returns the frame-directory name for a video path, which the
// rest of the pipeline uses as the video id.
func VideoName(videoPath string) string {
	return strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
}
