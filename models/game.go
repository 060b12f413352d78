// models/game.go
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "PENDING"
	StatusReady    = "READY"
	StatusFinished = "FINISHED"
)

// DefaultQuestionsLimit is used when a start-game request does not carry a limit.
const DefaultQuestionsLimit = 15

type Game struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Keywords       []string  `json:"keywords"`
	QuestionsLimit int       `json:"questions_limit"`
	CreationTime   time.Time `json:"creation_time"`
}

// CreateGame validates the player input and returns a fresh PENDING game.
// All rule violations are collected into a single *ValidationError, so the
// caller gets one field error per broken rule, not just the first.
func CreateGame(keywords []string, questionsLimit int) (*Game, error) {
	cleaned := make([]string, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[strings.ToLower(kw)] {
			continue
		}
		seen[strings.ToLower(kw)] = true
		cleaned = append(cleaned, kw)
	}

	var errs []FieldError
	if len(cleaned) == 0 {
		errs = append(errs, FieldError{Field: "keywords", Message: "no keywords provided"})
	}
	if questionsLimit < 1 {
		errs = append(errs, FieldError{Field: "questions_limit", Message: "must be larger than 0"})
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &Game{
		ID:             uuid.NewString(),
		Status:         StatusPending,
		Keywords:       cleaned,
		QuestionsLimit: questionsLimit,
		CreationTime:   time.Now().UTC(),
	}, nil
}

func (g *Game) IsFinished() bool {
	return g.Status == StatusFinished
}

// AnsweredCount derives the answering progress from an unanswered count.
func (g *Game) AnsweredCount(unanswered int) int {
	return g.QuestionsLimit - unanswered
}
