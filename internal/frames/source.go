// Package frames implements the frame-delivery pipeline: on-demand fetch,
// caching with lookahead preload, and a buffer-gated playback clock.
package frames

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Frame payloads arrive as JPEG or PNG.
	_ "image/jpeg"
	_ "image/png"
)

// Meta describes a frame-extracted video.
type Meta struct {
	TotalFrames int     `json:"total_frames"`
	FPS         float64 `json:"fps"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Duration    float64 `json:"duration"`
}

// Source delivers pre-extracted video frames by monotonically increasing
// index.
type Source interface {
	// Meta returns the frame count, rate and dimensions for a video.
	Meta(ctx context.Context, videoID string) (Meta, error)

	// Fetch returns the decoded frame at index. Indices start at 0.
	Fetch(ctx context.Context, videoID string, index int) (image.Image, error)
}

// HTTPSource fetches frames from the frame-source service.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource creates a source for the service at baseURL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Meta implements Source.
func (s *HTTPSource) Meta(ctx context.Context, videoID string) (Meta, error) {
	url := fmt.Sprintf("%s/api/videos/%s", s.BaseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Meta{}, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to fetch video metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Meta{}, fmt.Errorf("video metadata request returned %s", resp.Status)
	}
	var meta Meta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return Meta{}, fmt.Errorf("failed to decode video metadata: %w", err)
	}
	return meta, nil
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, videoID string, index int) (image.Image, error) {
	url := fmt.Sprintf("%s/api/videos/%s/frames/%d", s.BaseURL, videoID, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame %d: %w", index, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("frame %d request returned %s", index, resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", index, err)
	}
	return img, nil
}

// DirSource serves frames extracted to per-video JPEG directories, the
// layout the extractor produces (frame_0001.jpg upwards under
// outputDir/videoName).
type DirSource struct {
	Root string
	FPS  float64
}

// NewDirSource creates a source over extracted frame directories under root.
func NewDirSource(root string, fps float64) *DirSource {
	if fps <= 0 {
		fps = 30
	}
	return &DirSource{Root: root, FPS: fps}
}

func (s *DirSource) framePath(videoID string, index int) string {
	return filepath.Join(s.Root, videoID, fmt.Sprintf("frame_%04d.jpg", index+1))
}

// Meta implements Source by counting extracted frames and decoding the
// first one for dimensions.
func (s *DirSource) Meta(ctx context.Context, videoID string) (Meta, error) {
	dir := filepath.Join(s.Root, videoID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read frames directory '%s': %w", dir, err)
	}
	total := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
			total++
		}
	}
	if total == 0 {
		return Meta{}, fmt.Errorf("no frames found in directory '%s'", dir)
	}
	first, err := s.Fetch(ctx, videoID, 0)
	if err != nil {
		return Meta{}, err
	}
	b := first.Bounds()
	return Meta{
		TotalFrames: total,
		FPS:         s.FPS,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Duration:    float64(total) / s.FPS,
	}, nil
}

// Fetch implements Source.
func (s *DirSource) Fetch(ctx context.Context, videoID string, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.framePath(videoID, index)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame %d: %w", index, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame '%s': %w", path, err)
	}
	return img, nil
}
