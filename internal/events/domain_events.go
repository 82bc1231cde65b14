package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// Paper events
	EventPaperGenerated EventType = "paper.generated"
	EventPaperPublished EventType = "paper.published"
	EventPaperArchived  EventType = "paper.archived"

	// Session events
	EventSessionStarted   EventType = "session.started"
	EventSessionCompleted EventType = "session.completed"
	EventSessionExpired   EventType = "session.expired"
	EventSessionCancelled EventType = "session.cancelled"
)

const (
	eventSource  = "exam-service"
	eventVersion = "1.0"
)

// Event is the envelope every domain event is published in.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent wraps data in an envelope with a fresh id.
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// Paper event payloads

type PaperGeneratedEvent struct {
	PaperID        uint   `json:"paper_id"`
	Title          string `json:"title"`
	GenerationType string `json:"generation_type"`
	QuestionCount  int    `json:"question_count"`
	TotalScore     int    `json:"total_score"`
	TemplateID     *uint  `json:"template_id,omitempty"`
}

type PaperStatusEvent struct {
	PaperID       uint   `json:"paper_id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	QuestionCount int    `json:"question_count"`
	TotalScore    int    `json:"total_score"`
}

// Session event payloads

type SessionStartedEvent struct {
	SessionID     uint       `json:"session_id"`
	PaperID       uint       `json:"paper_id"`
	UserID        string     `json:"user_id"`
	AttemptNumber int        `json:"attempt_number"`
	StartedAt     time.Time  `json:"started_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type SessionFinishedEvent struct {
	SessionID     uint      `json:"session_id"`
	PaperID       uint      `json:"paper_id"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	AttemptNumber int       `json:"attempt_number"`
	Score         *int      `json:"score,omitempty"`
	TotalScore    *int      `json:"total_score,omitempty"`
	Passed        bool      `json:"passed"`
	Duration      *int      `json:"duration,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}
