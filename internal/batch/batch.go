// Package batch runs whole-video annotation jobs: every frame is segmented
// with a text prompt and the resulting instances are persisted as
// annotations and mask PNGs.
package batch

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // extracted frames are JPEG
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bdougie/maskedit/internal/analyzer"
	"github.com/bdougie/maskedit/internal/frames"
	"github.com/bdougie/maskedit/internal/mask"
	"github.com/bdougie/maskedit/internal/models"
	"github.com/bdougie/maskedit/internal/registry"
	"github.com/bdougie/maskedit/internal/storage"
)

const maxWorkers = 4 // Adjust based on your CPU cores

// Status is a batch job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job tracks one batch annotation run.
type Job struct {
	ID              string
	VideoID         string
	Prompt          string
	Threshold       float64
	Status          Status
	Progress        float64
	TotalFrames     int
	ProcessedFrames int
	FailedFrames    int
	Error           string
}

// Segmenter is the slice of the inference client batch needs.
type Segmenter interface {
	SegmentWithText(ctx context.Context, imageID, prompt string, threshold float64, width, height int) ([]registry.Instance, error)
}

// MaskSaver persists an instance mask and returns its path.
type MaskSaver interface {
	SaveMask(m *mask.Mask, name string) (string, error)
}

// DescriptorStore persists annotations with shape descriptors for
// similar-instance search.
type DescriptorStore interface {
	AddAnnotationWithDescriptor(ctx context.Context, a models.Annotation, descriptor []float32) error
}

// Processor runs batch annotation jobs over extracted frames.
type Processor struct {
	source    frames.Source
	segmenter Segmenter
	store     storage.Storage
	masks     MaskSaver           // optional
	vectors   DescriptorStore     // optional
	suggester *analyzer.Suggester // optional

	// FramePath maps a frame index to an on-disk image path for label
	// suggestion; nil disables suggestions.
	FramePath func(index int) string

	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewProcessor creates a batch processor. masks, vectors and suggester may
// be nil; the corresponding outputs are skipped.
func NewProcessor(source frames.Source, segmenter Segmenter, store storage.Storage, masks MaskSaver, vectors DescriptorStore, suggester *analyzer.Suggester, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		source:    source,
		segmenter: segmenter,
		store:     store,
		masks:     masks,
		vectors:   vectors,
		suggester: suggester,
		logger:    logger,
		jobs:      make(map[string]*Job),
	}
}

// CreateJob registers a pending job and returns its id.
func (p *Processor) CreateJob(videoID, prompt string, threshold float64) string {
	job := &Job{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		Prompt:    prompt,
		Threshold: threshold,
		Status:    StatusPending,
	}
	p.mu.Lock()
	p.jobs[job.ID] = job
	p.mu.Unlock()
	return job.ID
}

// JobStatus returns a copy of the job's current state.
func (p *Processor) JobStatus(jobID string) (Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[jobID]
	if !ok {
		return Job{}, fmt.Errorf("job %s not found", jobID)
	}
	return *job, nil
}

// Run processes a job to completion. Per-frame errors are counted and
// skipped; only setup failures fail the whole job.
func (p *Processor) Run(ctx context.Context, jobID string) error {
	p.mu.Lock()
	job, ok := p.jobs[jobID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("job %s not found", jobID)
	}
	job.Status = StatusProcessing
	p.mu.Unlock()

	meta, err := p.source.Meta(ctx, job.VideoID)
	if err != nil {
		p.failJob(job, fmt.Errorf("failed to read video metadata: %w", err))
		return err
	}

	p.mu.Lock()
	job.TotalFrames = meta.TotalFrames
	p.mu.Unlock()

	p.logger.Info("starting batch annotation",
		"job", job.ID, "video", job.VideoID, "prompt", job.Prompt, "frames", meta.TotalFrames)

	workChan := make(chan models.WorkItem, meta.TotalFrames)
	errorsChan := make(chan error, meta.TotalFrames)

	var wg sync.WaitGroup
	processed := atomic.Int64{}

	// Start worker pool
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workChan {
				if err := p.annotateFrame(ctx, job, meta, item.FrameIndex); err != nil {
					errorsChan <- fmt.Errorf("frame %d/%d failed: %w", item.FrameNum, item.Total, err)
				}

				done := processed.Add(1)
				p.mu.Lock()
				job.ProcessedFrames = int(done)
				job.Progress = float64(done) / float64(meta.TotalFrames)
				p.mu.Unlock()
			}
		}()
	}

	// Send work to workers
	go func() {
		for i := 0; i < meta.TotalFrames; i++ {
			workChan <- models.WorkItem{
				FrameIndex: i,
				FrameNum:   i + 1,
				Total:      meta.TotalFrames,
			}
		}
		close(workChan)
	}()

	wg.Wait()
	close(errorsChan)

	if err := p.store.Flush(); err != nil {
		p.failJob(job, fmt.Errorf("failed to flush annotations: %w", err))
		return err
	}

	failed := 0
	for err := range errorsChan {
		failed++
		p.logger.Warn("frame annotation failed", "job", job.ID, "error", err)
	}

	p.mu.Lock()
	job.FailedFrames = failed
	job.Status = StatusCompleted
	job.Progress = 1.0
	p.mu.Unlock()

	p.logger.Info("batch annotation complete", "job", job.ID, "frames", meta.TotalFrames, "failed", failed)
	return nil
}

func (p *Processor) failJob(job *Job, err error) {
	p.mu.Lock()
	job.Status = StatusFailed
	job.Error = err.Error()
	p.mu.Unlock()
}

// annotateFrame segments one frame and persists every resulting instance.
func (p *Processor) annotateFrame(ctx context.Context, job *Job, meta frames.Meta, index int) error {
	imageID := fmt.Sprintf("%s/frame_%04d", job.VideoID, index+1)

	instances, err := p.segmenter.SegmentWithText(ctx, imageID, job.Prompt, job.Threshold, meta.Width, meta.Height)
	if err != nil {
		return err
	}

	for i, in := range instances {
		a := models.Annotation{
			VideoID:    job.VideoID,
			FrameIndex: index,
			Label:      in.Label,
			Score:      in.Score,
			Box:        [4]int{in.Box.X0, in.Box.Y0, in.Box.X1, in.Box.Y1},
		}
		if a.Label == "" {
			a.Label = p.suggestLabel(index, in.Box)
		}

		if p.masks != nil {
			name := fmt.Sprintf("frame_%04d_%s_%d.png", index+1, job.Prompt, i)
			path, err := p.masks.SaveMask(in.Mask, name)
			if err != nil {
				return err
			}
			a.MaskPath = path
		}

		if p.vectors != nil {
			if err := p.vectors.AddAnnotationWithDescriptor(ctx, a, in.Mask.Descriptor()); err != nil {
				return err
			}
		}
		if err := p.store.AddAnnotation(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// suggestLabel asks the vision agent for a label for the instance at box in
// the frame at index. Each instance is cropped to its bounding box first, so
// two instances on the same frame can receive different labels. Returns ""
// when suggestions are disabled or the agent fails.
func (p *Processor) suggestLabel(index int, box mask.Rect) string {
	if p.suggester == nil || p.FramePath == nil {
		return ""
	}
	crop, err := cropFrame(p.FramePath(index), box)
	if err != nil {
		p.logger.Debug("instance crop failed", "frame", index, "error", err)
		return ""
	}
	res := <-p.suggester.SuggestLabel(crop)
	if res.Error != nil {
		p.logger.Debug("label suggestion failed", "frame", index, "error", res.Error)
		return ""
	}
	return res.Label
}

// cropFrame writes the bounding-box crop of the frame at path to a
// deterministic temp file and returns its path. The name encodes the video,
// frame and box, so repeated calls reuse the crop and the suggester's
// path-keyed cache stays effective.
func cropFrame(path string, box mask.Rect) (string, error) {
	frame := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := fmt.Sprintf("maskedit_%s_%s_%d_%d_%d_%d.png",
		filepath.Base(filepath.Dir(path)), frame, box.X0, box.Y0, box.X1, box.Y1)
	out := filepath.Join(os.TempDir(), name)
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open frame '%s': %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode frame '%s': %w", path, err)
	}

	rect := image.Rect(box.X0, box.Y0, box.X1+1, box.Y1+1).Intersect(img.Bounds())
	if rect.Empty() {
		return "", fmt.Errorf("box %s lies outside frame '%s'", box, path)
	}
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)

	dst, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("failed to create crop file: %w", err)
	}
	defer dst.Close()
	if err := png.Encode(dst, cropped); err != nil {
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}
	return out, nil
}
