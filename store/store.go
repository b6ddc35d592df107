// Package store persists scored prompts with version lineage in Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/promptdash/promptdash/quality"
	"github.com/promptdash/promptdash/utils"
)

// ErrNotFound is returned when a prompt id does not exist.
var ErrNotFound = errors.New("prompt not found")

// DB is the connection seam; *pgxpool.Pool satisfies it, as does pgxmock in
// tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Prompt is one stored prompt version. ParentID links a refined version to
// the prompt it was derived from; versions within a lineage are numbered
// from 1.
type Prompt struct {
	ID        uuid.UUID             `json:"id"`
	Text      string                `json:"text"`
	Tags      []string              `json:"tags"`
	QScore    float64               `json:"q_score"`
	Features  quality.FeatureVector `json:"features"`
	Version   int                   `json:"version"`
	ParentID  *uuid.UUID            `json:"parent_id,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

type Store struct {
	db     DB
	logger utils.Logger
}

func New(db DB, logger utils.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Create stores a prompt. With a parent, the new row's version is one past
// the highest version already recorded in that parent's lineage; a missing
// parent is ErrNotFound.
func (s *Store) Create(ctx context.Context, text string, tags []string, score quality.Score, features quality.FeatureVector, parentID *uuid.UUID) (*Prompt, error) {
	version := 1
	if parentID != nil {
		var latest int
		err := s.db.QueryRow(ctx,
			`SELECT COALESCE((SELECT MAX(version) FROM prompts WHERE parent_id = $1), version)
			 FROM prompts WHERE id = $1`, *parentID).Scan(&latest)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("parent %s: %w", parentID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve lineage version: %w", err)
		}
		version = latest + 1
	}

	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}

	prompt := &Prompt{
		ID:        uuid.New(),
		Text:      text,
		Tags:      tags,
		QScore:    score.Q,
		Features:  features,
		Version:   version,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO prompts (id, text, tags, q_score, features, version, parent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		prompt.ID, prompt.Text, prompt.Tags, prompt.QScore, featuresJSON,
		prompt.Version, prompt.ParentID, prompt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert prompt: %w", err)
	}

	s.logger.Debug("prompt stored", "id", prompt.ID.String(), "version", prompt.Version)
	return prompt, nil
}

// Save adapts Create to the optimizer's persistence interface.
func (s *Store) Save(ctx context.Context, text string, score quality.Score, features quality.FeatureVector, parentID *uuid.UUID) (uuid.UUID, error) {
	prompt, err := s.Create(ctx, text, nil, score, features, parentID)
	if err != nil {
		return uuid.Nil, err
	}
	return prompt.ID, nil
}

const promptColumns = `id, text, tags, q_score, features, version, parent_id, created_at`

func scanPrompt(row pgx.Row) (*Prompt, error) {
	var (
		p            Prompt
		featuresJSON []byte
	)
	err := row.Scan(&p.ID, &p.Text, &p.Tags, &p.QScore, &featuresJSON, &p.Version, &p.ParentID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan prompt: %w", err)
	}
	if err := json.Unmarshal(featuresJSON, &p.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return &p, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+promptColumns+` FROM prompts WHERE id = $1`, id)
	return scanPrompt(row)
}

// List returns all prompts, newest first.
func (s *Store) List(ctx context.Context) ([]Prompt, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+promptColumns+` FROM prompts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM prompts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Analytics summarizes the stored corpus by quality level.
type Analytics struct {
	Count        int            `json:"count"`
	AvgQ         float64        `json:"avg_q"`
	Distribution map[string]int `json:"distribution"`
}

func (s *Store) Analytics(ctx context.Context) (Analytics, error) {
	var (
		a         Analytics
		excellent int
		good      int
		fair      int
		poor      int
	)
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(q_score), 0),
		        COUNT(*) FILTER (WHERE q_score >= 0.9),
		        COUNT(*) FILTER (WHERE q_score >= 0.8 AND q_score < 0.9),
		        COUNT(*) FILTER (WHERE q_score >= 0.7 AND q_score < 0.8),
		        COUNT(*) FILTER (WHERE q_score < 0.7)
		 FROM prompts`).Scan(&a.Count, &a.AvgQ, &excellent, &good, &fair, &poor)
	if err != nil {
		return Analytics{}, fmt.Errorf("aggregate analytics: %w", err)
	}

	a.AvgQ = math.Round(a.AvgQ*10000) / 10000
	a.Distribution = map[string]int{
		quality.LevelExcellent: excellent,
		quality.LevelGood:      good,
		quality.LevelFair:      fair,
		quality.LevelPoor:      poor,
	}
	return a, nil
}
