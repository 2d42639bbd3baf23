package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	image_id         TEXT PRIMARY KEY,
	upload_date      TIMESTAMPTZ NOT NULL,
	status           TEXT NOT NULL,
	url              TEXT NOT NULL,
	labels           JSONB NOT NULL DEFAULT '[]',
	text             JSONB,
	searchable_terms TEXT
);

CREATE INDEX IF NOT EXISTS images_searchable_terms_idx ON images (searchable_terms);

CREATE TABLE IF NOT EXISTS image_signatures (
	signature  TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const selectImage = `SELECT image_id, upload_date, status, url, labels, text, COALESCE(searchable_terms, '') FROM images`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables and index if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) PutImage(ctx context.Context, rec *models.ImageRecord) error {
	defer observe("postgres", "put", time.Now())

	labels, err := json.Marshal(labelsOrEmpty(rec.AIAnalysis.Labels))
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	var text []byte
	if rec.AIAnalysis.Text != nil {
		if text, err = json.Marshal(rec.AIAnalysis.Text); err != nil {
			return fmt.Errorf("marshal text: %w", err)
		}
	}
	var terms *string
	if rec.SearchableTerms != "" {
		terms = &rec.SearchableTerms
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO images (image_id, upload_date, status, url, labels, text, searchable_terms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (image_id) DO UPDATE SET
		   upload_date = EXCLUDED.upload_date,
		   status = EXCLUDED.status,
		   url = EXCLUDED.url,
		   labels = EXCLUDED.labels,
		   text = EXCLUDED.text,
		   searchable_terms = EXCLUDED.searchable_terms`,
		rec.ImageID, rec.UploadDate, string(rec.Status), rec.URL,
		json.RawMessage(labels), nullableJSON(text), terms)
	if err != nil {
		return fmt.Errorf("put image %s: %w", rec.ImageID, err)
	}
	return nil
}

func (s *PostgresStore) FindBySignature(ctx context.Context, signature string) ([]models.ImageRecord, error) {
	defer observe("postgres", "query", time.Now())

	if signature == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, selectImage+` WHERE searchable_terms = $1`, signature)
	if err != nil {
		return nil, fmt.Errorf("query signature: %w", err)
	}
	return scanImages(rows)
}

// SearchTerms is a case-sensitive substring scan. strpos avoids LIKE
// wildcards in user input.
func (s *PostgresStore) SearchTerms(ctx context.Context, substr string) ([]models.ImageRecord, error) {
	defer observe("postgres", "scan", time.Now())

	rows, err := s.pool.Query(ctx,
		selectImage+` WHERE strpos(COALESCE(searchable_terms, ''), $1) > 0 OR $1 = ''`, substr)
	if err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}
	return scanImages(rows)
}

func (s *PostgresStore) ClaimSignature(ctx context.Context, signature, url string) (string, error) {
	defer observe("postgres", "claim", time.Now())

	var claimed string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO image_signatures (signature, url) VALUES ($1, $2)
		 ON CONFLICT (signature) DO NOTHING RETURNING url`,
		signature, url,
	).Scan(&claimed)
	if err == nil {
		return claimed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("claim signature: %w", err)
	}

	// Lost the race; read the winner in a fresh statement snapshot.
	err = s.pool.QueryRow(ctx,
		`SELECT url FROM image_signatures WHERE signature = $1`, signature,
	).Scan(&claimed)
	if err != nil {
		return "", fmt.Errorf("read signature claim: %w", err)
	}
	return claimed, nil
}

func scanImages(rows pgx.Rows) ([]models.ImageRecord, error) {
	defer rows.Close()

	var images []models.ImageRecord
	for rows.Next() {
		var (
			rec    models.ImageRecord
			status string
			labels []byte
			text   []byte
		)
		if err := rows.Scan(&rec.ImageID, &rec.UploadDate, &status, &rec.URL, &labels, &text, &rec.SearchableTerms); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		rec.Status = models.Status(status)
		rec.UploadDate = rec.UploadDate.UTC()
		if err := json.Unmarshal(labels, &rec.AIAnalysis.Labels); err != nil {
			return nil, fmt.Errorf("decode labels of %s: %w", rec.ImageID, err)
		}
		if len(text) > 0 {
			if err := json.Unmarshal(text, &rec.AIAnalysis.Text); err != nil {
				return nil, fmt.Errorf("decode text of %s: %w", rec.ImageID, err)
			}
		}
		images = append(images, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

func labelsOrEmpty(labels []models.Label) []models.Label {
	if labels == nil {
		return []models.Label{}
	}
	return labels
}

func nullableJSON(data []byte) any {
	if data == nil {
		return nil
	}
	return json.RawMessage(data)
}
