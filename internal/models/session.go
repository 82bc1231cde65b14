package models

import (
	"fmt"
	"math"
	"time"
)

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionExpired    SessionStatus = "expired"
	SessionCancelled  SessionStatus = "cancelled"
)

// IsActive reports whether a session can still be worked on.
func (s SessionStatus) IsActive() bool {
	return s == SessionPending || s == SessionInProgress
}

// IsFinished reports whether the status is terminal.
func (s SessionStatus) IsFinished() bool {
	return s == SessionCompleted || s == SessionExpired || s == SessionCancelled
}

type SessionEvent string

const (
	EventStart        SessionEvent = "start"
	EventSubmitAnswer SessionEvent = "submit_answer"
	EventComplete     SessionEvent = "complete"
	EventExpire       SessionEvent = "expire"
	EventCancel       SessionEvent = "cancel"
)

var sessionTransitions = map[SessionStatus]map[SessionEvent]SessionStatus{
	SessionPending: {
		EventStart:  SessionInProgress,
		EventCancel: SessionCancelled,
	},
	SessionInProgress: {
		EventSubmitAnswer: SessionInProgress,
		EventComplete:     SessionCompleted,
		EventExpire:       SessionExpired,
		EventCancel:       SessionCancelled,
	},
}

// TransitionError is returned when an event is not legal in the current status.
type TransitionError struct {
	From  SessionStatus
	Event SessionEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a session in status %s", e.Event, e.From)
}

// Transition returns the status reached by applying ev to s.
func (s SessionStatus) Transition(ev SessionEvent) (SessionStatus, error) {
	if next, ok := sessionTransitions[s][ev]; ok {
		return next, nil
	}
	return s, &TransitionError{From: s, Event: ev}
}

// CanTransition reports whether ev is legal in status s.
func (s SessionStatus) CanTransition(ev SessionEvent) bool {
	_, ok := sessionTransitions[s][ev]
	return ok
}

// QuestionTiming is the time a candidate spent on one question.
type QuestionTiming struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int       `json:"duration"` // seconds
}

type Session struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	PaperID       uint          `json:"paper_id" gorm:"not null;index:idx_session_user_paper;uniqueIndex:idx_session_attempt"`
	UserID        string        `json:"user_id" gorm:"not null;size:64;index:idx_session_user_paper;uniqueIndex:idx_session_attempt"`
	Status        SessionStatus `json:"status" gorm:"not null;size:16;default:pending;index"`
	StartTime     *time.Time    `json:"start_time"`
	EndTime       *time.Time    `json:"end_time"`
	ExpiresAt     *time.Time    `json:"expires_at" gorm:"index"`
	Score         *int          `json:"score"`
	TotalScore    *int          `json:"total_score"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;default:1;uniqueIndex:idx_session_attempt"`
	Duration      *int          `json:"duration"` // seconds
	Passed        bool          `json:"passed" gorm:"default:false"`
	Remark        *string       `json:"remark" gorm:"type:text"`

	Answers                  map[uint]Answer         `json:"answers" gorm:"type:jsonb;serializer:json"`
	QuestionTimings          map[uint]QuestionTiming `json:"question_timings" gorm:"type:jsonb;serializer:json"`
	CurrentQuestionID        *uint                   `json:"current_question_id"`
	CurrentQuestionStartedAt *time.Time              `json:"current_question_started_at"`

	Version   int       `json:"version" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Paper *Paper `json:"paper,omitempty" gorm:"foreignKey:PaperID"`
}

func (Session) TableName() string { return "exam_sessions" }

// Apply moves the session through ev, leaving it untouched when ev is illegal.
func (s *Session) Apply(ev SessionEvent) error {
	next, err := s.Status.Transition(ev)
	if err != nil {
		return err
	}
	s.Status = next
	return nil
}

// IsExpired reports whether the deadline has passed. Sessions without a deadline never expire.
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// RemainingSeconds is only defined while the session is in progress with a deadline.
func (s *Session) RemainingSeconds(now time.Time) *int {
	if s.Status != SessionInProgress || s.ExpiresAt == nil {
		return nil
	}
	remaining := int(s.ExpiresAt.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// ScorePercentage returns nil when the session has no score or no total.
func (s *Session) ScorePercentage() *float64 {
	if s.Score == nil || s.TotalScore == nil || *s.TotalScore == 0 {
		return nil
	}
	pct := Round2(float64(*s.Score) / float64(*s.TotalScore) * 100)
	return &pct
}

func (s *Session) HasAnswered(questionID uint) bool {
	a, ok := s.Answers[questionID]
	return ok && a.IsAnswered()
}

func (s *Session) Answer(questionID uint) (Answer, bool) {
	a, ok := s.Answers[questionID]
	if !ok || !a.IsAnswered() {
		return Answer{}, false
	}
	return a, true
}

func (s *Session) AnsweredCount() int {
	n := 0
	for _, a := range s.Answers {
		if a.IsAnswered() {
			n++
		}
	}
	return n
}

// Progress is the answered share of questionCount, in percent.
func (s *Session) Progress(questionCount int) float64 {
	if questionCount == 0 {
		return 0
	}
	return Round2(float64(s.AnsweredCount()) / float64(questionCount) * 100)
}

// SetAnswer upserts the answer for a question.
func (s *Session) SetAnswer(questionID uint, a Answer) {
	if s.Answers == nil {
		s.Answers = make(map[uint]Answer)
	}
	s.Answers[questionID] = a
}

// StartQuestionTiming points the session at the question the candidate is viewing.
func (s *Session) StartQuestionTiming(questionID uint, now time.Time) {
	s.CurrentQuestionID = &questionID
	s.CurrentQuestionStartedAt = &now
}

// RecordQuestionTiming closes the timing started for questionID and returns the
// elapsed seconds. It is a no-op returning 0 when questionID is not the current question.
func (s *Session) RecordQuestionTiming(questionID uint, now time.Time) int {
	if s.CurrentQuestionID == nil || s.CurrentQuestionStartedAt == nil || *s.CurrentQuestionID != questionID {
		return 0
	}
	started := *s.CurrentQuestionStartedAt
	elapsed := int(now.Sub(started) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if s.QuestionTimings == nil {
		s.QuestionTimings = make(map[uint]QuestionTiming)
	}
	s.QuestionTimings[questionID] = QuestionTiming{StartTime: started, EndTime: now, Duration: elapsed}
	s.CurrentQuestionID = nil
	s.CurrentQuestionStartedAt = nil
	return elapsed
}

// QuestionDuration returns the recorded seconds for a question, 0 if never recorded.
func (s *Session) QuestionDuration(questionID uint) int {
	return s.QuestionTimings[questionID].Duration
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
