package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/maskedit/internal/mask"
	"github.com/bdougie/maskedit/internal/models"
)

const batchSize = 10 // Number of annotations to batch before a disk write

// Storage defines the interface for persisting annotations
type Storage interface {
	// AddAnnotation records a single instance annotation
	AddAnnotation(ctx context.Context, a models.Annotation) error

	// Flush ensures all pending annotations are saved
	Flush() error
}

// FileStore persists annotations as JSON under outputDir/videoID and masks
// as grayscale PNGs under outputDir/videoID/masks.
type FileStore struct {
	annotations []models.Annotation
	mu          sync.Mutex
	outputDir   string
	videoID     string
}

// NewFileStore creates a file-backed annotation store
func NewFileStore(outputDir, videoID string) *FileStore {
	return &FileStore{
		annotations: []models.Annotation{},
		outputDir:   outputDir,
		videoID:     videoID,
	}
}

// AddAnnotation adds an annotation to the batch and flushes when full
func (s *FileStore) AddAnnotation(ctx context.Context, a models.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations = append(s.annotations, a)

	if len(s.annotations) >= batchSize {
		if err := s.flush(); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes all pending annotations to disk
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *FileStore) flush() error {
	if len(s.annotations) == 0 {
		return nil
	}

	path := filepath.Join(s.outputDir, s.videoID, "annotations.json")

	var existing []models.Annotation
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal existing annotations: %w", err)
		}
	}

	all := append(existing, s.annotations...)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create annotation directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(all); err != nil {
		return err
	}

	s.annotations = nil // Clear the batch
	return nil
}

// SaveMask writes an instance mask as a grayscale PNG and returns its path.
func (s *FileStore) SaveMask(m *mask.Mask, name string) (string, error) {
	dir := filepath.Join(s.outputDir, s.videoID, "masks")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create mask directory: %w", err)
	}
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create mask file: %w", err)
	}
	defer file.Close()

	if err := m.EncodePNG(file); err != nil {
		return "", err
	}
	return path, nil
}
