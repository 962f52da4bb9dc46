package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/maskedit/internal/mask"
	"github.com/bdougie/maskedit/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// PostgresStore manages annotation persistence in PostgreSQL. Each
// annotation row carries a shape-descriptor vector so similar instances can
// be found across frames and videos.
type PostgresStore struct {
	pool    *pgxpool.Pool
	videoID int
	video   string
}

// NewPostgresStore creates a new PostgreSQL annotation store
func NewPostgresStore(ctx context.Context, config PostgresConfig, video string) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.DBName,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		pool:  pool,
		video: video,
	}

	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}

	videoID, err := store.getOrCreateVideo(ctx, video)
	if err != nil {
		return nil, err
	}
	store.videoID = videoID

	return store, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS videos (
			id SERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS annotations (
			id SERIAL PRIMARY KEY,
			video_id INT NOT NULL REFERENCES videos(id),
			frame_index INT NOT NULL,
			label TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			x0 INT NOT NULL, y0 INT NOT NULL, x1 INT NOT NULL, y1 INT NOT NULL,
			mask_path TEXT,
			descriptor vector(%d),
			created_at TIMESTAMPTZ NOT NULL
		)`, mask.DescriptorDim),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// getOrCreateVideo gets an existing video entry or creates a new one
func (s *PostgresStore) getOrCreateVideo(ctx context.Context, name string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM videos WHERE name = $1",
		name).Scan(&id)

	if err == nil {
		return id, nil
	} else if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("error checking for existing video: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"INSERT INTO videos (name, created_at) VALUES ($1, $2) RETURNING id",
		name, time.Now()).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to create video entry: %w", err)
	}

	return id, nil
}

// AddAnnotation stores one instance annotation together with its mask
// descriptor vector.
func (s *PostgresStore) AddAnnotation(ctx context.Context, a models.Annotation) error {
	return s.AddAnnotationWithDescriptor(ctx, a, nil)
}

// AddAnnotationWithDescriptor stores an annotation with an explicit
// descriptor; nil descriptor leaves the vector column NULL.
func (s *PostgresStore) AddAnnotationWithDescriptor(ctx context.Context, a models.Annotation, descriptor []float32) error {
	var vec any
	if descriptor != nil {
		vec = pgvector.NewVector(descriptor)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO annotations
		(video_id, frame_index, label, score, x0, y0, x1, y1, mask_path, descriptor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.videoID, a.FrameIndex, a.Label, a.Score,
		a.Box[0], a.Box[1], a.Box[2], a.Box[3],
		a.MaskPath, vec, time.Now())

	if err != nil {
		return fmt.Errorf("failed to store annotation: %w", err)
	}
	return nil
}

// Flush implements the Storage interface - no-op for Postgres as rows are
// written immediately
func (s *PostgresStore) Flush() error {
	return nil
}

// SearchSimilarInstances finds stored annotations whose mask descriptors
// are closest to the query mask, nearest first.
func (s *PostgresStore) SearchSimilarInstances(ctx context.Context, query *mask.Mask, limit int) ([]models.InstanceSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(query.Descriptor())

	rows, err := s.pool.Query(ctx,
		`SELECT v.name, a.frame_index, a.label, a.score,
		1 - (a.descriptor <=> $1) AS similarity
		FROM annotations a
		JOIN videos v ON a.video_id = v.id
		WHERE a.descriptor IS NOT NULL
		ORDER BY a.descriptor <=> $1
		LIMIT $2`,
		vec, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to search similar instances: %w", err)
	}
	defer rows.Close()

	var results []models.InstanceSearchResult
	for rows.Next() {
		var r models.InstanceSearchResult
		if err := rows.Scan(&r.VideoID, &r.FrameIndex, &r.Label, &r.Score, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
