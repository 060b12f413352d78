// handlers/game.go
package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"trivia-quiz-system/gateway"
	"trivia-quiz-system/middleware"
	"trivia-quiz-system/models"
	"trivia-quiz-system/services"
)

type GameHandler struct {
	Sessions *services.SessionService
}

// SetupGameRoutes registers the player-facing API. Every route sits behind
// the player-context middleware; handlers never see raw tokens.
func SetupGameRoutes(app *fiber.App, sessions *services.SessionService, playerCtx fiber.Handler) {
	h := &GameHandler{Sessions: sessions}

	games := app.Group("/games", playerCtx)
	games.Get("/", h.ListGames)
	games.Post("/", h.StartGame)
	games.Get("/:id", h.GetGame)
	games.Get("/:id/questions", h.ListQuestions)
	games.Post("/:id/questions/ask", h.PoseNextQuestion)
	games.Get("/:id/questions/:index", h.GetQuestion)
	games.Post("/:id/questions/answer", h.SubmitAnswer)
}

func (h *GameHandler) ListGames(c *fiber.Ctx) error {
	player := middleware.CurrentPlayer(c)

	games, err := h.Sessions.ListGames(c.UserContext(), player)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"games": games})
}

func (h *GameHandler) StartGame(c *fiber.Ctx) error {
	player := middleware.CurrentPlayer(c)

	var input struct {
		Keywords       []string `json:"keywords"`
		QuestionsLimit int      `json:"questions_limit"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if input.QuestionsLimit == 0 {
		input.QuestionsLimit = models.DefaultQuestionsLimit
	}

	game, err := h.Sessions.StartGame(c.UserContext(), player, input.Keywords, input.QuestionsLimit)
	if err != nil {
		return renderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(game)
}

func (h *GameHandler) GetGame(c *fiber.Ctx) error {
	player := middleware.CurrentPlayer(c)

	game, err := h.Sessions.GetGame(c.UserContext(), player, c.Params("id"))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(game)
}

func (h *GameHandler) ListQuestions(c *fiber.Ctx) error {
	player := middleware.CurrentPlayer(c)

	questions, err := h.Sessions.ListQuestions(c.UserContext(), player, c.Params("id"))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"questions": questions})
}

func (h *GameHandler) PoseNextQuestion(c *fiber.Ctx) error {
	player := middleware.CurrentPlayer(c)

	prompt, err := h.Sessions.PoseNextQuestion(c.UserContext(), player, c.Params("id"))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(prompt)
}

func (h *GameHandler) GetQuestion(c *fiber.Ctx) error {
	player := middleware.CurrentPlayer(c)

	index, err := c.ParamsInt("index")
	if err != nil || index < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid question index"})
	}

	prompt, err := h.Sessions.GetQuestion(c.UserContext(), player, c.Params("id"), index)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(prompt)
}

func (h *GameHandler) SubmitAnswer(c *fiber.Ctx) error {
	player := middleware.CurrentPlayer(c)

	var input struct {
		Choice string `json:"choice"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	feedback, err := h.Sessions.SubmitAnswer(c.UserContext(), player, c.Params("id"), input.Choice)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(feedback)
}

// renderError maps the service error taxonomy onto HTTP statuses: missing
// records are 404, bad input is 400, conflicts are 409, the rest is 500.
func renderError(c *fiber.Ctx, err error) error {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": validation.Errors})
	}

	var limitReached *models.QuestionsLimitReachedError
	if errors.As(err, &limitReached) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": []fiber.Map{
				{"message": fmt.Sprintf("Game %s has reached questions limit of %d", limitReached.GameID, limitReached.Limit)},
			},
		})
	}

	var noGame *gateway.NoSuchGameError
	if errors.As(err, &noGame) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}

	var noQuestion *gateway.NoSuchQuestionError
	if errors.As(err, &noQuestion) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "question not found"})
	}

	switch {
	case errors.Is(err, models.ErrInvalidAnswer):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "choice is not one of the question options"})
	case errors.Is(err, gateway.ErrAlreadyAnswered):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "question already answered"})
	case errors.Is(err, gateway.ErrGameFinished):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "game already finished"})
	case errors.Is(err, services.ErrGameNotReady):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "questions are still being generated"})
	}

	log.Printf("unhandled error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
