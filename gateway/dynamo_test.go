// gateway/dynamo_test.go
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-quiz-system/models"
)

func newTestGateway(pageSize int) (*DynamoGateway, *fakeSender) {
	sender := &fakeSender{}
	queue := NewGenerationQueue(sender, "https://sqs.test/generation")
	fake := newFakeDynamo(pageSize)
	return NewDynamoGateway(fake, queue, gamesTable, questionsTable), sender
}

func testGame(id string, createdAt int64) *models.Game {
	return &models.Game{
		ID:             id,
		Status:         models.StatusPending,
		Keywords:       []string{"jazz", "piano"},
		QuestionsLimit: 15,
		CreationTime:   time.Unix(createdAt, 0).UTC(),
	}
}

func testQuestion(t *testing.T, index int) *models.Question {
	t.Helper()
	question, err := models.CreateQuestion(index,
		fmt.Sprintf("Prompt %d?", index),
		"Right",
		[]string{"Wrong A", "Wrong B", "Wrong C"},
		"Because.",
	)
	require.NoError(t, err)
	return question
}

func storeQuestions(t *testing.T, gw *DynamoGateway, game *models.Game, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, gw.StoreGameQuestion(context.Background(), game, testQuestion(t, i)))
	}
}

func answerQuestion(t *testing.T, gw *DynamoGateway, game *models.Game, index int, choice string) {
	t.Helper()
	question := testQuestion(t, index)
	question.Choice = &choice
	require.NoError(t, gw.UpdateQuestionChoice(context.Background(), game, question))
}

func TestStoreGameRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw, sender := newTestGateway(10)
	player := models.Player{ID: "player-1"}
	game := testGame("game-1", 1000)

	require.NoError(t, gw.StoreGame(ctx, player, game))

	got, err := gw.GetGame(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, game.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.ElementsMatch(t, game.Keywords, got.Keywords)
	assert.Equal(t, game.QuestionsLimit, got.QuestionsLimit)
	assert.Equal(t, game.CreationTime.Unix(), got.CreationTime.Unix())

	// Storing the game also queued exactly one generation request.
	require.Len(t, sender.sent, 1)
	var req GenerationRequest
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(sender.sent[0].MessageBody)), &req))
	assert.Equal(t, GenerationRequest{GameID: "game-1", PlayerID: "player-1"}, req)
}

func TestGetGameNeverLeaksAcrossPlayers(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(10)
	owner := models.Player{ID: "player-1"}
	game := testGame("game-1", 1000)
	require.NoError(t, gw.StoreGame(ctx, owner, game))

	got, err := gw.GetGame(ctx, models.Player{ID: "player-2"}, game.ID)
	assert.Nil(t, got)

	var noGame *NoSuchGameError
	require.ErrorAs(t, err, &noGame)
	assert.Equal(t, game.ID, noGame.GameID)
}

func TestUpdateGameStatus(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(10)
	player := models.Player{ID: "player-1"}
	game := testGame("game-1", 1000)
	require.NoError(t, gw.StoreGame(ctx, player, game))

	game.Status = models.StatusReady
	require.NoError(t, gw.UpdateGameStatus(ctx, player, game))

	got, err := gw.GetGame(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)

	game.Status = models.StatusFinished
	require.NoError(t, gw.UpdateGameStatus(ctx, player, game))

	// FINISHED is terminal: the compare-and-set rejects any further write.
	game.Status = models.StatusReady
	err = gw.UpdateGameStatus(ctx, player, game)
	assert.ErrorIs(t, err, ErrGameFinished)

	got, err = gw.GetGame(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)
}

func TestUpdateGameStatusMissingGame(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(10)
	game := testGame("game-nope", 1000)
	game.Status = models.StatusReady

	err := gw.UpdateGameStatus(ctx, models.Player{ID: "player-1"}, game)

	var noGame *NoSuchGameError
	require.ErrorAs(t, err, &noGame)
	assert.Equal(t, "game-nope", noGame.GameID)
}

func TestStoreGameQuestionInsertOnce(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(10)
	game := testGame("game-1", 1000)

	require.NoError(t, gw.StoreGameQuestion(ctx, game, testQuestion(t, 1)))

	err := gw.StoreGameQuestion(ctx, game, testQuestion(t, 1))
	assert.ErrorIs(t, err, ErrQuestionExists)

	// The same index under another game is a different record.
	other := testGame("game-2", 2000)
	assert.NoError(t, gw.StoreGameQuestion(ctx, other, testQuestion(t, 1)))
}

func TestStoreGameQuestionBeyondLimit(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(10)
	game := testGame("game-1", 1000)
	game.QuestionsLimit = 2

	require.NoError(t, gw.StoreGameQuestion(ctx, game, testQuestion(t, 2)))

	err := gw.StoreGameQuestion(ctx, game, testQuestion(t, 3))
	var limitReached *models.QuestionsLimitReachedError
	require.ErrorAs(t, err, &limitReached)
	assert.Equal(t, game.ID, limitReached.GameID)
	assert.Equal(t, 2, limitReached.Limit)

	// Nothing was written past the limit.
	_, err = gw.GetGameQuestion(ctx, game, 3)
	var noQuestion *NoSuchQuestionError
	assert.ErrorAs(t, err, &noQuestion)
}

func TestStoreGameQuestionsNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(10)
	game := testGame("game-1", 1000)
	questions := []*models.Question{testQuestion(t, 1), testQuestion(t, 2), testQuestion(t, 3)}

	require.NoError(t, gw.StoreGameQuestions(ctx, game, questions))

	// A redelivered batch fails on the first duplicate instead of replacing
	// stored records.
	err := gw.StoreGameQuestions(ctx, game, questions)
	assert.ErrorIs(t, err, ErrQuestionExists)
}

func TestListGameQuestionsAscending(t *testing.T) {
	ctx := context.Background()
	// Page size 2 forces the iterator across several pages.
	gw, _ := newTestGateway(2)
	game := testGame("game-1", 1000)
	storeQuestions(t, gw, game, 5)

	var indexes []int
	seq := gw.ListGameQuestions(ctx, game)
	for {
		question, ok, err := seq.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		indexes = append(indexes, question.Index)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, indexes)
}

func TestListUnansweredQuestions(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(2)
	game := testGame("game-1", 1000)
	storeQuestions(t, gw, game, 5)
	answerQuestion(t, gw, game, 1, "Right")
	answerQuestion(t, gw, game, 3, "Wrong A")

	var indexes []int
	seq := gw.ListUnansweredQuestions(ctx, game)
	for {
		question, ok, err := seq.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.False(t, question.IsAnswered())
		indexes = append(indexes, question.Index)
	}
	assert.Equal(t, []int{2, 4, 5}, indexes)
}

func TestFirstUnansweredStopsEarly(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo(2)
	queue := NewGenerationQueue(&fakeSender{}, "https://sqs.test/generation")
	gw := NewDynamoGateway(fake, queue, gamesTable, questionsTable)
	game := testGame("game-1", 1000)
	storeQuestions(t, gw, game, 5)

	fake.queryCalls = 0
	seq := gw.ListUnansweredQuestions(ctx, game)
	question, ok, err := seq.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, question.Index)

	// Abandoning the sequence after the first hit fetched a single page.
	assert.Equal(t, 1, fake.queryCalls)
}

func TestCountUnansweredQuestions(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(2)
	game := testGame("game-1", 1000)
	storeQuestions(t, gw, game, 5)
	answerQuestion(t, gw, game, 2, "Right")
	answerQuestion(t, gw, game, 4, "Wrong B")

	count, err := gw.CountUnansweredQuestions(ctx, game)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestGetGameQuestion(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(10)
	game := testGame("game-1", 1000)
	storeQuestions(t, gw, game, 2)

	question, err := gw.GetGameQuestion(ctx, game, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, question.Index)
	assert.Equal(t, "Prompt 2?", question.Prompt)
	assert.Equal(t, "Right", question.CorrectAnswer)
	assert.Equal(t, []string{"Wrong A", "Wrong B", "Wrong C"}, question.WrongAnswers)

	_, err = gw.GetGameQuestion(ctx, game, 9)
	var noQuestion *NoSuchQuestionError
	require.ErrorAs(t, err, &noQuestion)
	assert.Equal(t, 9, noQuestion.Index)
}

func TestUpdateQuestionChoice(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(10)
	game := testGame("game-1", 1000)
	storeQuestions(t, gw, game, 1)

	// An unanswered in-memory question is a no-op, not a write.
	require.NoError(t, gw.UpdateQuestionChoice(ctx, game, testQuestion(t, 1)))
	stored, err := gw.GetGameQuestion(ctx, game, 1)
	require.NoError(t, err)
	assert.False(t, stored.IsAnswered())

	answerQuestion(t, gw, game, 1, "Wrong C")
	stored, err = gw.GetGameQuestion(ctx, game, 1)
	require.NoError(t, err)
	require.NotNil(t, stored.Choice)
	assert.Equal(t, "Wrong C", *stored.Choice)

	// A second submission loses the conditional write.
	question := testQuestion(t, 1)
	choice := "Right"
	question.Choice = &choice
	err = gw.UpdateQuestionChoice(ctx, game, question)
	assert.ErrorIs(t, err, ErrAlreadyAnswered)

	stored, err = gw.GetGameQuestion(ctx, game, 1)
	require.NoError(t, err)
	assert.Equal(t, "Wrong C", *stored.Choice)
}

func TestListPlayerGamesNewestFirst(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(2)
	player := models.Player{ID: "player-1"}
	require.NoError(t, gw.StoreGame(ctx, player, testGame("game-old", 1000)))
	require.NoError(t, gw.StoreGame(ctx, player, testGame("game-new", 3000)))
	require.NoError(t, gw.StoreGame(ctx, player, testGame("game-mid", 2000)))
	require.NoError(t, gw.StoreGame(ctx, models.Player{ID: "player-2"}, testGame("game-other", 4000)))

	var ids []string
	seq := gw.ListPlayerGames(ctx, player)
	for {
		game, ok, err := seq.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, game.ID)
	}
	assert.Equal(t, []string{"game-new", "game-mid", "game-old"}, ids)
}

func TestListPlayerGamesEmpty(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(2)

	seq := gw.ListPlayerGames(ctx, models.Player{ID: "nobody"})
	_, ok, err := seq.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
