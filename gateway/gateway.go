// gateway/gateway.go
//
// The gateway is the sole mutator of stored state. Every invariant on games
// and questions (one question per index, a choice never changes once set,
// FINISHED is terminal) is enforced here with conditional writes, because
// the backing store offers no transactions across these operations.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"trivia-quiz-system/models"
)

var (
	// ErrUnknownToken means the token cache holds no live entry for the
	// presented bearer token; the caller is expected to run the identity
	// exchange and Remember the result.
	ErrUnknownToken = errors.New("unknown token")

	// ErrAlreadyAnswered is the conditional-write conflict on a question
	// that already carries a choice. It is distinct from NotFound so the
	// API can say "already answered" instead of a generic failure.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrQuestionExists is the insert-once conflict on (game, index).
	ErrQuestionExists = errors.New("question already stored at this index")

	// ErrGameFinished is the monotonic-status conflict: the stored game is
	// FINISHED and stays that way.
	ErrGameFinished = errors.New("game already finished")
)

type NoSuchGameError struct {
	GameID string
}

func (e *NoSuchGameError) Error() string {
	return fmt.Sprintf("no such game: %s", e.GameID)
}

type NoSuchQuestionError struct {
	GameID string
	Index  int
}

func (e *NoSuchQuestionError) Error() string {
	return fmt.Sprintf("no such question: game %s index %d", e.GameID, e.Index)
}

// GameSeq is a lazy, forward-only sequence of games. Each call to the
// producing operation restarts from the beginning; page boundaries are
// hidden and abandoning the sequence early fetches no further pages.
type GameSeq interface {
	Next(ctx context.Context) (models.Game, bool, error)
}

// QuestionSeq is the question counterpart of GameSeq.
type QuestionSeq interface {
	Next(ctx context.Context) (models.Question, bool, error)
}

// Gateway is the persistence surface the orchestration layer composes.
// Listings are not snapshot-isolated against concurrent writes: a question
// stored mid-listing may or may not appear in that listing. That is read
// skew, not corruption, and callers tolerate it.
type Gateway interface {
	// ListPlayerGames returns the player's games newest first. A player
	// with no games yields an empty sequence, never an error.
	ListPlayerGames(ctx context.Context, player models.Player) GameSeq

	// StoreGame inserts a new game record and durably enqueues a question
	// generation request for it. When StoreGame returns nil, the request
	// has been queued at least once.
	StoreGame(ctx context.Context, player models.Player, game *models.Game) error

	// GetGame fails with *NoSuchGameError when no record exists for this
	// exact (player, game) pair. A lookup of another player's game fails
	// the same way; existence is never leaked across partitions.
	GetGame(ctx context.Context, player models.Player, gameID string) (*models.Game, error)

	// UpdateGameStatus writes game.Status, conditional on the stored
	// status not being FINISHED. A finished game fails with
	// ErrGameFinished; a missing record with *NoSuchGameError.
	UpdateGameStatus(ctx context.Context, player models.Player, game *models.Game) error

	// ListGameQuestions returns the game's questions by ascending index,
	// up to the game's questions limit.
	ListGameQuestions(ctx context.Context, game *models.Game) QuestionSeq

	// ListUnansweredQuestions is ListGameQuestions filtered to questions
	// without a choice; its first element is the lowest-indexed
	// unanswered question.
	ListUnansweredQuestions(ctx context.Context, game *models.Game) QuestionSeq

	// CountUnansweredQuestions counts without materializing records.
	CountUnansweredQuestions(ctx context.Context, game *models.Game) (int, error)

	// GetGameQuestion fails with *NoSuchQuestionError when absent.
	GetGameQuestion(ctx context.Context, game *models.Game, index int) (*models.Question, error)

	// StoreGameQuestion inserts at (game, index), failing with
	// ErrQuestionExists if a record is already there.
	StoreGameQuestion(ctx context.Context, game *models.Game, question *models.Question) error

	// StoreGameQuestions stores a batch with the same insert-once rule
	// per question; it never silently overwrites.
	StoreGameQuestions(ctx context.Context, game *models.Game, questions []*models.Question) error

	// UpdateQuestionChoice persists the question's choice, conditional on
	// no choice being stored yet. A nil in-memory choice is a no-op; a
	// stored choice fails with ErrAlreadyAnswered.
	UpdateQuestionChoice(ctx context.Context, game *models.Game, question *models.Question) error
}
