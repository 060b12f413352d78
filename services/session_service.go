// services/session_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"trivia-quiz-system/gateway"
	"trivia-quiz-system/metrics"
	"trivia-quiz-system/models"
)

// ErrGameNotReady means question generation has not finished yet; the
// player should keep polling the game status.
var ErrGameNotReady = errors.New("questions are still being generated")

// SessionService drives the game lifecycle. It holds no state of its own:
// every request reloads games and questions from the store, and all
// concurrency control lives in the gateway's conditional writes.
type SessionService struct {
	Gateway gateway.Gateway
}

func NewSessionService(gw gateway.Gateway) *SessionService {
	return &SessionService{Gateway: gw}
}

// GameSummary is the listing shape of a game. CreationTime is epoch millis.
type GameSummary struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	Keywords       []string `json:"keywords"`
	QuestionsLimit int      `json:"questions_limit"`
	CreationTime   int64    `json:"creation_time"`
}

// GameReport extends the summary with answering progress.
type GameReport struct {
	GameSummary
	QuestionsAnswered int `json:"questions_answered"`
}

func summarize(game *models.Game) GameSummary {
	return GameSummary{
		ID:             game.ID,
		Status:         game.Status,
		Keywords:       game.Keywords,
		QuestionsLimit: game.QuestionsLimit,
		CreationTime:   game.CreationTime.UnixMilli(),
	}
}

func (s *SessionService) ListGames(ctx context.Context, player models.Player) ([]GameSummary, error) {
	summaries := []GameSummary{}
	seq := s.Gateway.ListPlayerGames(ctx, player)
	for {
		game, ok, err := seq.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}
		if !ok {
			return summaries, nil
		}
		summaries = append(summaries, summarize(&game))
	}
}

// StartGame creates and stores a PENDING game; storing it also enqueues the
// generation request that will eventually flip it to READY.
func (s *SessionService) StartGame(ctx context.Context, player models.Player, keywords []string, questionsLimit int) (*GameSummary, error) {
	game, err := models.CreateGame(keywords, questionsLimit)
	if err != nil {
		return nil, err
	}

	if err := s.Gateway.StoreGame(ctx, player, game); err != nil {
		return nil, err
	}

	metrics.GamesStarted.Inc()
	summary := summarize(game)
	return &summary, nil
}

func (s *SessionService) GetGame(ctx context.Context, player models.Player, gameID string) (*GameReport, error) {
	game, err := s.Gateway.GetGame(ctx, player, gameID)
	if err != nil {
		return nil, err
	}

	report := &GameReport{GameSummary: summarize(game)}
	// A PENDING game has no stored questions yet; the limit-minus-unanswered
	// formula only holds once generation has populated the table.
	if game.Status != models.StatusPending {
		unanswered, err := s.Gateway.CountUnansweredQuestions(ctx, game)
		if err != nil {
			return nil, err
		}
		report.QuestionsAnswered = game.AnsweredCount(unanswered)
	}
	return report, nil
}

func (s *SessionService) ListQuestions(ctx context.Context, player models.Player, gameID string) ([]models.QuestionSummary, error) {
	game, err := s.Gateway.GetGame(ctx, player, gameID)
	if err != nil {
		return nil, err
	}

	summaries := []models.QuestionSummary{}
	seq := s.Gateway.ListGameQuestions(ctx, game)
	for {
		question, ok, err := seq.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list questions of game %s: %w", gameID, err)
		}
		if !ok {
			return summaries, nil
		}
		summaries = append(summaries, question.Describe())
	}
}

// PoseNextQuestion returns the lowest-indexed unanswered question, posed.
// An empty sequence means the game is fully answered and is reported the
// same way as a FINISHED game.
func (s *SessionService) PoseNextQuestion(ctx context.Context, player models.Player, gameID string) (*models.QuestionPrompt, error) {
	_, question, err := s.nextUnanswered(ctx, player, gameID)
	if err != nil {
		return nil, err
	}

	prompt := question.Pose()
	return &prompt, nil
}

// GetQuestion poses the question at a specific index.
func (s *SessionService) GetQuestion(ctx context.Context, player models.Player, gameID string, index int) (*models.QuestionPrompt, error) {
	game, err := s.Gateway.GetGame(ctx, player, gameID)
	if err != nil {
		return nil, err
	}

	question, err := s.Gateway.GetGameQuestion(ctx, game, index)
	if err != nil {
		return nil, err
	}

	prompt := question.Pose()
	return &prompt, nil
}

// SubmitAnswer answers the lowest-indexed unanswered question. The choice
// is persisted with a conditional write, so of two concurrent submissions
// exactly one wins and the other surfaces ErrAlreadyAnswered. Answering the
// question at the limit index finishes the game.
func (s *SessionService) SubmitAnswer(ctx context.Context, player models.Player, gameID, choice string) (*models.QuestionFeedback, error) {
	game, question, err := s.nextUnanswered(ctx, player, gameID)
	if err != nil {
		return nil, err
	}

	feedback, err := question.Answer(choice)
	if err != nil {
		return nil, err
	}

	if err := s.Gateway.UpdateQuestionChoice(ctx, game, question); err != nil {
		return nil, err
	}

	if feedback.Result {
		metrics.AnswersSubmitted.WithLabelValues("correct").Inc()
	} else {
		metrics.AnswersSubmitted.WithLabelValues("wrong").Inc()
	}

	if question.Index == game.QuestionsLimit {
		game.Status = models.StatusFinished
		if err := s.Gateway.UpdateGameStatus(ctx, player, game); err != nil {
			return nil, err
		}
	}

	return &feedback, nil
}

func (s *SessionService) nextUnanswered(ctx context.Context, player models.Player, gameID string) (*models.Game, *models.Question, error) {
	game, err := s.Gateway.GetGame(ctx, player, gameID)
	if err != nil {
		return nil, nil, err
	}

	switch game.Status {
	case models.StatusPending:
		return nil, nil, ErrGameNotReady
	case models.StatusFinished:
		return nil, nil, &models.QuestionsLimitReachedError{GameID: game.ID, Limit: game.QuestionsLimit}
	}

	seq := s.Gateway.ListUnansweredQuestions(ctx, game)
	question, ok, err := seq.Next(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find next question of game %s: %w", gameID, err)
	}
	if !ok {
		// Every question is answered but the finish transition has not
		// landed yet; to the player this game is done.
		return nil, nil, &models.QuestionsLimitReachedError{GameID: game.ID, Limit: game.QuestionsLimit}
	}

	return game, &question, nil
}
