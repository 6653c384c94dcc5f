// Package store is the narrow persistence layer the pipeline needs: job
// claims and status updates, content-source reads (personas, app clips,
// products) and asset telemetry. It is not a CRUD layer.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AitomaLab/ugc-engine/scene"
)

// ErrNotFound reports a missing row where the caller asked for a specific one.
var ErrNotFound = errors.New("not found")

// Job statuses as stored on the video_jobs row.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// Job is one video generation request row.
type Job struct {
	ID            string
	Status        string
	Progress      int
	Hook          string
	LengthSeconds int
	Caption       string
	Theme         string
	Model         string
	LipSync       bool
	SkipMusic     bool
	PersonaID     string
	ClipID        *string
	ProductID     *string
	ErrorMessage  string
	FinalVideoURL string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Asset is one telemetry row in generated_assets.
type Asset struct {
	JobID     string
	SceneName string
	AssetType string
	SourceURL string
	Model     string
	Duration  float64
	Status    string
	ErrorMsg  string
}

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Connect opens the pool with retries so the service survives the database
// coming up after it does.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is not set")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	var pool *pgxpool.Pool
	maxRetries := 10
	retryDelay := 10 * time.Second

	for i := 0; i < maxRetries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				logger.Info("Successfully connected to the database")
				return pool, nil
			}
			pool.Close()
		}

		logger.Warn("Failed to connect to the database",
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", maxRetries),
			slog.String("error", err.Error()))
		if i < maxRetries-1 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to the database after %d attempts: %w", maxRetries, err)
}

const jobColumns = `id, status, progress, hook, length_seconds, caption, theme,
	model, lip_sync, skip_music, persona_id, app_clip_id, product_id,
	coalesce(error_message, ''), coalesce(final_video_url, ''), created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Status, &j.Progress, &j.Hook, &j.LengthSeconds,
		&j.Caption, &j.Theme, &j.Model, &j.LipSync, &j.SkipMusic,
		&j.PersonaID, &j.ClipID, &j.ProductID,
		&j.ErrorMessage, &j.FinalVideoURL, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return &j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM video_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ClaimQueuedJobs atomically flips up to limit queued jobs to processing and
// returns them, oldest first. Concurrent schedulers never claim the same row.
func (s *Store) ClaimQueuedJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE video_jobs SET status = $1, updated_at = now()
		WHERE id IN (
			SELECT id FROM video_jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		StatusProcessing, StatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queued jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// SetProgress updates the coarse progress percent without touching status.
func (s *Store) SetProgress(ctx context.Context, id string, progress int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE video_jobs SET progress = $1, updated_at = now() WHERE id = $2`,
		progress, id)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// MarkComplete records the published video URL and flips the job to success.
func (s *Store) MarkComplete(ctx context.Context, id, finalVideoURL string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE video_jobs
		SET status = $1, progress = 100, final_video_url = $2,
			error_message = NULL, updated_at = now()
		WHERE id = $3`,
		StatusSuccess, finalVideoURL, id)
	if err != nil {
		return fmt.Errorf("failed to mark job complete: %w", err)
	}
	return nil
}

// MarkFailed stores the operator-facing failure message on the job row.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE video_jobs SET status = $1, error_message = $2, updated_at = now()
		WHERE id = $3`,
		StatusFailed, message, id)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// RequeueJob puts a claimed job back in the queue, used when the worker
// cannot start it (concurrency gate, duplicate run).
func (s *Store) RequeueJob(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE video_jobs SET status = $1, updated_at = now() WHERE id = $2`,
		StatusQueued, id)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return nil
}

func (s *Store) GetPersona(ctx context.Context, id string) (*scene.Persona, error) {
	var p scene.Persona
	err := s.pool.QueryRow(ctx, `
		SELECT name, age, gender, visual_description, personality, energy_level,
			accent, tone, voice_id, reference_image_url
		FROM personas WHERE id = $1`, id).
		Scan(&p.Name, &p.Age, &p.Gender, &p.VisualDescription, &p.Personality,
			&p.Energy, &p.Accent, &p.Tone, &p.VoiceID, &p.ReferenceImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load persona: %w", err)
	}
	return &p, nil
}

// GetAppClip loads a specific clip row.
func (s *Store) GetAppClip(ctx context.Context, id string) (*scene.Clip, error) {
	var c scene.Clip
	err := s.pool.QueryRow(ctx, `
		SELECT name, video_url, duration_seconds
		FROM app_clips WHERE id = $1`, id).
		Scan(&c.Name, &c.VideoURL, &c.Duration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load app clip: %w", err)
	}
	return &c, nil
}

// PickAppClip auto-selects a clip for a job without an explicit one,
// preferring a category match and falling back to any clip. A database with
// no clips returns ErrNotFound; the scene builder then synthesizes a demo
// scene instead.
func (s *Store) PickAppClip(ctx context.Context, category string) (*scene.Clip, error) {
	var c scene.Clip
	err := s.pool.QueryRow(ctx, `
		SELECT name, video_url, duration_seconds
		FROM app_clips
		WHERE $1 <> '' AND (category ILIKE '%' || $1 || '%'
			OR description ILIKE '%' || $1 || '%'
			OR name ILIKE '%' || $1 || '%')
		ORDER BY random()
		LIMIT 1`, category).
		Scan(&c.Name, &c.VideoURL, &c.Duration)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to pick app clip: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT name, video_url, duration_seconds
		FROM app_clips ORDER BY random() LIMIT 1`).
		Scan(&c.Name, &c.VideoURL, &c.Duration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to pick app clip: %w", err)
	}
	return &c, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*scene.Product, error) {
	var p scene.Product
	err := s.pool.QueryRow(ctx, `
		SELECT name, description, image_url
		FROM products WHERE id = $1`, id).
		Scan(&p.Name, &p.Description, &p.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &p, nil
}

// LogAsset records per-scene telemetry. It never fails the run: errors are
// logged and swallowed.
func (s *Store) LogAsset(ctx context.Context, asset Asset) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO generated_assets
			(job_id, scene_name, asset_type, source_url, model, duration, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		asset.JobID, asset.SceneName, asset.AssetType, asset.SourceURL,
		asset.Model, asset.Duration, asset.Status, asset.ErrorMsg)
	if err != nil {
		s.logger.Warn("Failed to log generated asset",
			slog.String("job_id", asset.JobID),
			slog.String("scene", asset.SceneName),
			slog.String("error", err.Error()))
	}
}

// ResetStaleClaims flips processing jobs older than maxAge back to queued so
// a crashed worker's claims are eventually retried.
func (s *Store) ResetStaleClaims(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE video_jobs SET status = $1, updated_at = now()
		WHERE status = $2 AND updated_at < now() - $3::interval`,
		StatusQueued, StatusProcessing, fmt.Sprintf("%d seconds", int(maxAge.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale claims: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
