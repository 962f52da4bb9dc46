package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"log/slog"

	"github.com/lmittmann/tint"

	"github.com/bdougie/maskedit/internal/analyzer"
	"github.com/bdougie/maskedit/internal/batch"
	"github.com/bdougie/maskedit/internal/extractor"
	"github.com/bdougie/maskedit/internal/frames"
	"github.com/bdougie/maskedit/internal/inference"
	"github.com/bdougie/maskedit/internal/storage"
)

func main() {
	ctx := context.Background()

	// Configure logger
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "15:04:05",
		}),
	)

	// Parse command line arguments
	videoPath := ""
	outputDir := "output_frames"
	backendURL := "http://localhost:8000"
	prompt := ""
	fps := 5.0
	threshold := inference.DefaultConfidenceThreshold
	suggest := false
	var pgConfig *storage.PostgresConfig

	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--video":
			if i+1 < len(os.Args) {
				videoPath = os.Args[i+1]
				i++
			}
		case "--output":
			if i+1 < len(os.Args) {
				outputDir = os.Args[i+1]
				i++
			}
		case "--backend":
			if i+1 < len(os.Args) {
				backendURL = os.Args[i+1]
				i++
			}
		case "--prompt":
			if i+1 < len(os.Args) {
				prompt = os.Args[i+1]
				i++
			}
		case "--fps":
			if i+1 < len(os.Args) {
				fmt.Sscanf(os.Args[i+1], "%f", &fps)
				i++
			}
		case "--threshold":
			if i+1 < len(os.Args) {
				fmt.Sscanf(os.Args[i+1], "%f", &threshold)
				i++
			}
		case "--suggest-labels":
			suggest = true
		case "--db":
			// --db user:password@host:port/name
			if i+1 < len(os.Args) {
				cfg, err := parseDB(os.Args[i+1])
				if err != nil {
					logger.Error("invalid --db value", "error", err)
					os.Exit(1)
				}
				pgConfig = cfg
				i++
			}
		}
	}

	if videoPath == "" || prompt == "" {
		fmt.Println("Usage: maskedit --video path/to/video.mp4 --prompt \"object to segment\" [--output dir] [--backend url] [--fps n] [--threshold t] [--suggest-labels] [--db user:pass@host:port/name]")
		os.Exit(1)
	}

	// Extract frames with ffmpeg
	frameDir, err := extractor.ExtractFrames(videoPath, outputDir, fps, logger)
	if err != nil {
		logger.Error("frame extraction failed", "error", err)
		os.Exit(1)
	}

	videoID := extractor.VideoName(videoPath)
	source := frames.NewDirSource(outputDir, fps)

	// Initialize stores
	fileStore := storage.NewFileStore(outputDir, videoID)
	var vectors batch.DescriptorStore
	if pgConfig != nil {
		pg, err := storage.NewPostgresStore(ctx, *pgConfig, videoID)
		if err != nil {
			logger.Error("failed to open postgres store", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		vectors = pg
	}

	// Initialize label suggestions when requested
	var suggester *analyzer.Suggester
	if suggest {
		visionAgent, err := analyzer.NewAgent(ctx, logger)
		if err != nil {
			logger.Warn("vision agent unavailable, label suggestions disabled", "error", err)
		} else {
			suggester = analyzer.NewSuggester(visionAgent, 2)
			defer suggester.Close()
		}
	}

	// Run the batch annotation job
	segmenter := inference.NewClient(backendURL, logger)
	processor := batch.NewProcessor(source, segmenter, fileStore, fileStore, vectors, suggester, logger)
	processor.FramePath = func(index int) string {
		return fmt.Sprintf("%s/frame_%04d.jpg", frameDir, index+1)
	}

	jobID := processor.CreateJob(videoID, prompt, threshold)
	if err := processor.Run(ctx, jobID); err != nil {
		logger.Error("batch annotation failed", "job", jobID, "error", err)
		os.Exit(1)
	}

	job, _ := processor.JobStatus(jobID)
	fmt.Printf("Annotated %d frames (%d failed)\n", job.ProcessedFrames, job.FailedFrames)
}

// parseDB parses user:password@host:port/name into a PostgresConfig.
func parseDB(s string) (*storage.PostgresConfig, error) {
	var cfg storage.PostgresConfig
	cred, rest, ok := strings.Cut(s, "@")
	if !ok {
		return nil, fmt.Errorf("missing '@'")
	}
	cfg.User, cfg.Password, _ = strings.Cut(cred, ":")
	hostport, name, ok := strings.Cut(rest, "/")
	if !ok {
		return nil, fmt.Errorf("missing database name")
	}
	cfg.Host, cfg.Port, ok = strings.Cut(hostport, ":")
	if !ok {
		cfg.Port = "5432"
	}
	cfg.DBName = name
	return &cfg, nil
}
