// Package inference talks to the segmentation backend. The model itself is
// opaque: given an image and a text prompt it returns mask/box/score lists,
// and given a stroke it returns the rasterized footprint to apply.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bdougie/maskedit/internal/mask"
	"github.com/bdougie/maskedit/internal/raster"
	"github.com/bdougie/maskedit/internal/registry"
)

// DefaultConfidenceThreshold filters low-confidence predictions when the
// caller does not specify one.
const DefaultConfidenceThreshold = 0.5

// Client is an HTTP client for the segmentation service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

type textPromptRequest struct {
	ImageID             string  `json:"image_id"`
	Prompt              string  `json:"prompt"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

type strokeRequest struct {
	ImageID    string         `json:"image_id"`
	InstanceID int            `json:"instance_id"`
	Operation  string         `json:"operation"`
	Points     []raster.Point `json:"points"`
	Radius     int            `json:"radius"`
}

type segmentationResult struct {
	Masks  [][][]int   `json:"masks"`
	Boxes  [][]float64 `json:"boxes"`
	Scores []float64   `json:"scores"`
	Labels []string    `json:"labels"`
}

// SegmentWithText runs text-prompt segmentation for an uploaded image or
// frame and returns the resulting instances in model order. Masks whose
// dimensions differ from width×height are rejected outright.
func (c *Client) SegmentWithText(ctx context.Context, imageID, prompt string, threshold float64, width, height int) ([]registry.Instance, error) {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	var result segmentationResult
	err := c.post(ctx, "/api/segment/image/text", textPromptRequest{
		ImageID:             imageID,
		Prompt:              prompt,
		ConfidenceThreshold: threshold,
	}, &result)
	if err != nil {
		return nil, err
	}

	instances := make([]registry.Instance, 0, len(result.Masks))
	for i, grid := range result.Masks {
		m, err := mask.FromGrid(grid)
		if err != nil {
			return nil, fmt.Errorf("mask %d: %w", i, err)
		}
		if m.Width() != width || m.Height() != height {
			return nil, fmt.Errorf("%w: mask %d is %dx%d, want %dx%d",
				mask.ErrDimensionMismatch, i, m.Width(), m.Height(), width, height)
		}
		if m.Empty() {
			// Below-threshold leftovers; an all-zero mask never enters
			// the registry.
			continue
		}
		box, _ := m.Bounds()
		in := registry.Instance{Mask: m, Box: box, Score: 1.0}
		if i < len(result.Scores) {
			in.Score = result.Scores[i]
		}
		if i < len(result.Labels) {
			in.Label = result.Labels[i]
		} else {
			in.Label = prompt
		}
		instances = append(instances, in)
	}
	c.logger.Debug("segmentation complete", "image", imageID, "prompt", prompt, "instances", len(instances))
	return instances, nil
}

// StrokeFootprint asks the service to rasterize a stroke against the stored
// image state and returns the footprint to combine locally. A footprint
// whose size differs from the target image is rejected with no registry
// mutation; there is no auto-retry, the user re-draws.
func (c *Client) StrokeFootprint(ctx context.Context, imageID string, instanceID int, op registry.Op, points []raster.Point, radius, width, height int) (*mask.Mask, error) {
	var result segmentationResult
	err := c.post(ctx, "/api/segment/image/stroke", strokeRequest{
		ImageID:    imageID,
		InstanceID: instanceID,
		Operation:  op.String(),
		Points:     points,
		Radius:     radius,
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Masks) == 0 {
		return nil, fmt.Errorf("stroke response for image %s contained no footprint", imageID)
	}
	m, err := mask.FromGrid(result.Masks[0])
	if err != nil {
		return nil, err
	}
	if m.Width() != width || m.Height() != height {
		return nil, fmt.Errorf("%w: footprint is %dx%d, want %dx%d",
			mask.ErrDimensionMismatch, m.Width(), m.Height(), width, height)
	}
	return m, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("segmentation request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("segmentation service returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode segmentation response: %w", err)
	}
	return nil
}
