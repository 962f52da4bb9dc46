package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agent-api/core/pkg/agent"
)

// Result represents the outcome of a label suggestion
type Result struct {
	ImagePath string
	Label     string
	Error     error
}

// work is a unit of suggestion work
type work struct {
	imagePath string
	result    chan<- Result
}

// Suggester asks the vision agent for short labels on instance crops,
// caching by image path so re-annotating a frame never re-queries the
// model. Batch annotation uses it when the segmentation service returns no
// label for an instance.
type Suggester struct {
	agent      *agent.DefaultAgent
	numWorkers int
	workQueue  chan work
	cache      sync.Map
	wg         sync.WaitGroup
}

// NewSuggester creates a suggestion service with the given worker count
func NewSuggester(a *agent.DefaultAgent, numWorkers int) *Suggester {
	if numWorkers <= 0 {
		numWorkers = 2
	}

	s := &Suggester{
		agent:      a,
		numWorkers: numWorkers,
		workQueue:  make(chan work, 100),
	}
	s.startWorkers()
	return s
}

func (s *Suggester) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for w := range s.workQueue {
				if cached, ok := s.cache.Load(w.imagePath); ok {
					if label, valid := cached.(string); valid {
						w.result <- Result{ImagePath: w.imagePath, Label: label}
						continue
					}
				}

				label, err := s.suggest(context.Background(), w.imagePath)
				if err == nil {
					s.cache.Store(w.imagePath, label)
				}

				w.result <- Result{
					ImagePath: w.imagePath,
					Label:     label,
					Error:     err,
				}
			}
		}()
	}
}

// SuggestLabel requests a label suggestion asynchronously
func (s *Suggester) SuggestLabel(imagePath string) <-chan Result {
	resultChan := make(chan Result, 1)

	select {
	case s.workQueue <- work{imagePath: imagePath, result: resultChan}:
		// Work queued successfully
	default:
		resultChan <- Result{
			ImagePath: imagePath,
			Error:     fmt.Errorf("suggestion queue is full, try again later"),
		}
		close(resultChan)
	}

	return resultChan
}

// suggest runs the vision agent on one image crop
func (s *Suggester) suggest(ctx context.Context, imagePath string) (string, error) {
	response := s.agent.Run(
		ctx,
		agent.WithInput("Name the most prominent object in this image crop. Answer with a short label only."),
		agent.WithImagePath(imagePath),
	)
	if response.Err != nil {
		return "", response.Err
	}

	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}

	label := response.Messages[len(response.Messages)-1].Content
	label = strings.ToLower(strings.TrimSpace(strings.Trim(label, ".\"'")))
	if label == "" {
		return "", fmt.Errorf("model returned an empty label")
	}
	return label, nil
}

// Close shuts down the suggestion service and waits for workers to finish
func (s *Suggester) Close() {
	if s.workQueue != nil {
		close(s.workQueue)
	}
	s.wg.Wait()
}
