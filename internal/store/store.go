package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Candidate is one person we may interview.
type Candidate struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"` // E.164
	ResumeText string    `json:"resume_text"`
	Status     string    `json:"status"` // pending/calling/interviewed/selected/rejected
	CreatedAt  time.Time `json:"created_at"`
}

// Job is one open position candidates are screened for.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Call is one placed phone call, keyed by the provider's call identifier.
type Call struct {
	ID             string     `json:"id"`
	ProviderCallID string     `json:"provider_call_id"`
	CandidateID    string     `json:"candidate_id"`
	JobID          string     `json:"job_id"`
	Status         string     `json:"status"` // queued/in_progress/completed/failed/timed_out
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// QAResult is one question/answer pair with its evaluation.
type QAResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Score    int    `json:"score"`
	Reason   string `json:"reason"`
}

// Report is the single durable artifact of a finished interview.
type Report struct {
	ID           string     `json:"id"`
	CandidateID  string     `json:"candidate_id"`
	JobID        string     `json:"job_id"`
	CallID       string     `json:"call_id"` // provider call identifier
	Results      []QAResult `json:"results"`
	AverageScore float64    `json:"average_score"`
	Decision     string     `json:"decision"` // SELECT/REJECT/NOT_READY/TIMED_OUT
	Reason       string     `json:"reason"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	var c Candidate
	err := s.db.QueryRow(ctx, `
		SELECT id, name, phone, resume_text, status, created_at
		FROM candidates WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.ResumeText, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return &c, nil
}

func (s *Store) UpdateCandidateStatus(ctx context.Context, id, status string) error {
	_, err := s.db.Exec(ctx, `UPDATE candidates SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	err := s.db.QueryRow(ctx, `
		SELECT id, title, description, created_at
		FROM jobs WHERE id = $1
	`, id).Scan(&j.ID, &j.Title, &j.Description, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// UpsertCall records a placed call, keyed by the provider call identifier so
// a webhook retry cannot create a duplicate row.
func (s *Store) UpsertCall(ctx context.Context, c Call) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO calls (id, provider_call_id, candidate_id, job_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_call_id) DO UPDATE
		SET status = EXCLUDED.status
	`, c.ID, c.ProviderCallID, c.CandidateID, c.JobID, c.Status, c.StartedAt)
	if err != nil {
		return fmt.Errorf("upsert call: %w", err)
	}
	return nil
}

// GetCallByProviderID resolves a provider call identifier to the call record,
// giving the media stream its candidate/job context.
func (s *Store) GetCallByProviderID(ctx context.Context, providerCallID string) (*Call, error) {
	var c Call
	err := s.db.QueryRow(ctx, `
		SELECT id, provider_call_id, candidate_id, job_id, status, started_at, ended_at
		FROM calls WHERE provider_call_id = $1
	`, providerCallID).Scan(&c.ID, &c.ProviderCallID, &c.CandidateID, &c.JobID, &c.Status, &c.StartedAt, &c.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return &c, nil
}

func (s *Store) UpdateCallStatus(ctx context.Context, providerCallID, status string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE calls SET status = $2, ended_at = CASE WHEN $2 IN ('completed','failed','timed_out') THEN $3 ELSE ended_at END
		WHERE provider_call_id = $1
	`, providerCallID, status, at)
	return err
}

// InsertReport appends one finalized interview report. Reports are
// append-only; the engine never reads them back.
func (s *Store) InsertReport(ctx context.Context, r Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	resultsJSON, err := json.Marshal(r.Results)
	if err != nil {
		return fmt.Errorf("marshal report results: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO reports (id, candidate_id, job_id, call_id, results, average_score, decision, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.CandidateID, r.JobID, r.CallID, resultsJSON, r.AverageScore, r.Decision, r.Reason, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListReports returns the most recent reports, optionally filtered by
// candidate. Serves the operator API, not the call path.
func (s *Store) ListReports(ctx context.Context, candidateID string, limit int) ([]Report, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, candidate_id, job_id, call_id, results, average_score, decision, reason, created_at
		FROM reports`
	args := []any{limit}
	if candidateID != "" {
		query += ` WHERE candidate_id = $2`
		args = append(args, candidateID)
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		var resultsJSON []byte
		if err := rows.Scan(&r.ID, &r.CandidateID, &r.JobID, &r.CallID, &resultsJSON,
			&r.AverageScore, &r.Decision, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal(resultsJSON, &r.Results); err != nil {
			return nil, fmt.Errorf("decode report results: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
