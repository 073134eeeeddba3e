package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType identifies one step in an interview call's lifecycle.
type EventType string

const (
	EventCallPlaced      EventType = "call_placed"
	EventCallStarted     EventType = "call_started"
	EventConsentReady    EventType = "consent_ready"
	EventConsentDeclined EventType = "consent_declined"
	EventQuestionAsked   EventType = "question_asked"
	EventAnswerScored    EventType = "answer_scored"
	EventSpeechFailed    EventType = "speech_failed"
	EventTurnTimeout     EventType = "turn_timeout"
	EventFinalized       EventType = "interview_finalized"
	EventCallTimedOut    EventType = "call_timed_out"
	EventCallEnded       EventType = "call_ended"
)

// Logger writes per-call audit events to the database.
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger. A nil pool disables logging.
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Log writes an event synchronously.
func (l *Logger) Log(ctx context.Context, callID string, eventType EventType, data map[string]any) error {
	if l == nil || l.db == nil || callID == "" {
		return nil
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO call_events (call_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, callID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller. The audio path uses
// this exclusively: event persistence must never delay a frame.
func (l *Logger) LogAsync(callID string, eventType EventType, data map[string]any) {
	if l == nil || l.db == nil || callID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, callID, eventType, data)
	}()
}
