// models/errors.go
package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuestion = errors.New("correct answer must not appear among the wrong answers")
	ErrInvalidAnswer   = errors.New("choice is not one of the question options")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries one entry per violated rule so the API can report
// every problem with the request at once.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "invalid game: " + strings.Join(parts, "; ")
}

// QuestionsLimitReachedError signals that a game has no further questions to
// pose or answer.
type QuestionsLimitReachedError struct {
	GameID string
	Limit  int
}

func (e *QuestionsLimitReachedError) Error() string {
	return fmt.Sprintf("game %s has reached questions limit of %d", e.GameID, e.Limit)
}
