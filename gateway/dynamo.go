// gateway/dynamo.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"trivia-quiz-system/models"
)

// creationTimeIndex is the GSI on the games table keyed by
// (PlayerId, CreationTime); it drives the reverse-chronological listing.
const creationTimeIndex = "creation-time-index"

// DynamoDBAPI is the slice of the DynamoDB client the gateway uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoGateway implements Gateway on two DynamoDB tables:
//
//	games:     PK PlayerId (S), SK GameId (S), GSI creation-time-index
//	questions: PK GameId (S),   SK QuestionId (N)
//
// Transient store errors (throttling, network) are not retried here; they
// propagate to the caller, whose writes are all conditional or idempotent
// and therefore safe to retry at the request boundary.
type DynamoGateway struct {
	client        DynamoDBAPI
	queue         *GenerationQueue
	gameTable     string
	questionTable string
}

func NewDynamoGateway(client DynamoDBAPI, queue *GenerationQueue, gameTable, questionTable string) *DynamoGateway {
	return &DynamoGateway{
		client:        client,
		queue:         queue,
		gameTable:     gameTable,
		questionTable: questionTable,
	}
}

type gameRecord struct {
	PlayerID       string   `dynamodbav:"PlayerId"`
	GameID         string   `dynamodbav:"GameId"`
	GameStatus     string   `dynamodbav:"GameStatus"`
	Keywords       []string `dynamodbav:"Keywords,stringset"`
	QuestionsLimit int      `dynamodbav:"QuestionsLimit"`
	CreationTime   int64    `dynamodbav:"CreationTime"`
}

func (r gameRecord) toGame() models.Game {
	return models.Game{
		ID:             r.GameID,
		Status:         r.GameStatus,
		Keywords:       r.Keywords,
		QuestionsLimit: r.QuestionsLimit,
		CreationTime:   time.Unix(r.CreationTime, 0).UTC(),
	}
}

type questionRecord struct {
	GameID        string   `dynamodbav:"GameId"`
	QuestionID    int      `dynamodbav:"QuestionId"`
	Prompt        string   `dynamodbav:"Prompt"`
	Answer        string   `dynamodbav:"Answer"`
	WrongAnswers  []string `dynamodbav:"WrongAnswers"`
	Clarification string   `dynamodbav:"Clarification"`
	Choice        *string  `dynamodbav:"Choice,omitempty"`
}

func (r questionRecord) toQuestion() models.Question {
	return models.Question{
		Index:         r.QuestionID,
		Prompt:        r.Prompt,
		CorrectAnswer: r.Answer,
		WrongAnswers:  r.WrongAnswers,
		Clarification: r.Clarification,
		Choice:        r.Choice,
	}
}

func questionToRecord(game *models.Game, question *models.Question) questionRecord {
	return questionRecord{
		GameID:        game.ID,
		QuestionID:    question.Index,
		Prompt:        question.Prompt,
		Answer:        question.CorrectAnswer,
		WrongAnswers:  question.WrongAnswers,
		Clarification: question.Clarification,
		Choice:        question.Choice,
	}
}

func (g *DynamoGateway) ListPlayerGames(ctx context.Context, player models.Player) GameSeq {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(g.gameTable),
		IndexName:              aws.String(creationTimeIndex),
		KeyConditionExpression: aws.String("PlayerId = :player_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":player_id": &types.AttributeValueMemberS{Value: player.ID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	return &gameIterator{pager: newQueryPager(g.client, input)}
}

func (g *DynamoGateway) StoreGame(ctx context.Context, player models.Player, game *models.Game) error {
	record := gameRecord{
		PlayerID:       player.ID,
		GameID:         game.ID,
		GameStatus:     game.Status,
		Keywords:       game.Keywords,
		QuestionsLimit: game.QuestionsLimit,
		CreationTime:   game.CreationTime.Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}

	if _, err := g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.gameTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to store game %s: %w", game.ID, err)
	}

	// Success means a generation request is durably queued at least once.
	if err := g.queue.Enqueue(ctx, player.ID, game.ID); err != nil {
		return fmt.Errorf("failed to enqueue generation request for game %s: %w", game.ID, err)
	}
	return nil
}

func (g *DynamoGateway) GetGame(ctx context.Context, player models.Player, gameID string) (*models.Game, error) {
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(g.gameTable),
		Key:       gameKey(player.ID, gameID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", gameID, err)
	}
	if out.Item == nil {
		return nil, &NoSuchGameError{GameID: gameID}
	}

	var record gameRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %s: %w", gameID, err)
	}
	game := record.toGame()
	return &game, nil
}

// UpdateGameStatus is a compare-and-set on the stored status: the write is
// rejected whenever the stored record is already FINISHED, so a concurrent
// finisher cannot be undone. The existence check keeps a cross-player or
// stale update from minting a stray record.
func (g *DynamoGateway) UpdateGameStatus(ctx context.Context, player models.Player, game *models.Game) error {
	_, err := g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(g.gameTable),
		Key:                 gameKey(player.ID, game.ID),
		ConditionExpression: aws.String("attribute_exists(GameId) AND GameStatus <> :finished"),
		UpdateExpression:    aws.String("SET GameStatus = :game_status"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":game_status": &types.AttributeValueMemberS{Value: game.Status},
			":finished":    &types.AttributeValueMemberS{Value: models.StatusFinished},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			if len(conditionFailed.Item) == 0 {
				return &NoSuchGameError{GameID: game.ID}
			}
			return ErrGameFinished
		}
		return fmt.Errorf("failed to update status of game %s: %w", game.ID, err)
	}
	return nil
}

func (g *DynamoGateway) ListGameQuestions(ctx context.Context, game *models.Game) QuestionSeq {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(g.questionTable),
		KeyConditionExpression: aws.String("GameId = :game_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":game_id": &types.AttributeValueMemberS{Value: game.ID},
		},
		Limit: aws.Int32(int32(game.QuestionsLimit)),
	}
	return &questionIterator{pager: newQueryPager(g.client, input)}
}

func (g *DynamoGateway) ListUnansweredQuestions(ctx context.Context, game *models.Game) QuestionSeq {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(g.questionTable),
		KeyConditionExpression: aws.String("GameId = :game_id"),
		FilterExpression:       aws.String("attribute_not_exists(Choice)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":game_id": &types.AttributeValueMemberS{Value: game.ID},
		},
		Limit: aws.Int32(int32(game.QuestionsLimit)),
	}
	return &questionIterator{pager: newQueryPager(g.client, input)}
}

func (g *DynamoGateway) CountUnansweredQuestions(ctx context.Context, game *models.Game) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(g.questionTable),
		KeyConditionExpression: aws.String("GameId = :game_id"),
		FilterExpression:       aws.String("attribute_not_exists(Choice)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":game_id": &types.AttributeValueMemberS{Value: game.ID},
		},
		Select: types.SelectCount,
	}

	count := 0
	var startKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = startKey
		out, err := g.client.Query(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("failed to count unanswered questions of game %s: %w", game.ID, err)
		}
		count += int(out.Count)
		if out.LastEvaluatedKey == nil {
			return count, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (g *DynamoGateway) GetGameQuestion(ctx context.Context, game *models.Game, index int) (*models.Question, error) {
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(g.questionTable),
		Key:       questionKey(game.ID, index),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get question %d of game %s: %w", index, game.ID, err)
	}
	if out.Item == nil {
		return nil, &NoSuchQuestionError{GameID: game.ID, Index: index}
	}

	var record questionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question %d of game %s: %w", index, game.ID, err)
	}
	question := record.toQuestion()
	return &question, nil
}

// StoreGameQuestion inserts at (game, index). Indexes beyond the game's
// questions limit are refused up front, so the stored question count can
// never exceed the limit no matter what the generation pipeline produces.
func (g *DynamoGateway) StoreGameQuestion(ctx context.Context, game *models.Game, question *models.Question) error {
	if question.Index > game.QuestionsLimit {
		return &models.QuestionsLimitReachedError{GameID: game.ID, Limit: game.QuestionsLimit}
	}

	item, err := attributevalue.MarshalMap(questionToRecord(game, question))
	if err != nil {
		return fmt.Errorf("failed to marshal question record: %w", err)
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(g.questionTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(GameId) AND attribute_not_exists(QuestionId)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrQuestionExists
		}
		return fmt.Errorf("failed to store question %d of game %s: %w", question.Index, game.ID, err)
	}
	return nil
}

// StoreGameQuestions inserts every question with the same insert-once
// condition as the single form. Batch writes cannot carry conditions, so
// this is a loop of conditional puts rather than one batch call; a
// duplicate index fails with ErrQuestionExists instead of overwriting.
func (g *DynamoGateway) StoreGameQuestions(ctx context.Context, game *models.Game, questions []*models.Question) error {
	for _, question := range questions {
		if err := g.StoreGameQuestion(ctx, game, question); err != nil {
			return err
		}
	}
	return nil
}

// UpdateQuestionChoice applies the choice only if the stored record carries
// none. An unanswered in-memory question is nothing to persist and returns
// nil; a stored choice is a conflict, reported as ErrAlreadyAnswered so the
// caller can say "already answered" rather than failing generically.
func (g *DynamoGateway) UpdateQuestionChoice(ctx context.Context, game *models.Game, question *models.Question) error {
	if !question.IsAnswered() {
		return nil
	}

	_, err := g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(g.questionTable),
		Key:                 questionKey(game.ID, question.Index),
		ConditionExpression: aws.String("attribute_exists(GameId) AND attribute_not_exists(Choice)"),
		UpdateExpression:    aws.String("SET Choice = :choice"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":choice": &types.AttributeValueMemberS{Value: *question.Choice},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrAlreadyAnswered
		}
		return fmt.Errorf("failed to update choice of question %d in game %s: %w", question.Index, game.ID, err)
	}
	return nil
}

func gameKey(playerID, gameID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PlayerId": &types.AttributeValueMemberS{Value: playerID},
		"GameId":   &types.AttributeValueMemberS{Value: gameID},
	}
}

func questionKey(gameID string, index int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"GameId":     &types.AttributeValueMemberS{Value: gameID},
		"QuestionId": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", index)},
	}
}
