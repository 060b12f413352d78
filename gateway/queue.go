// gateway/queue.go
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// GenerationRequest is the message StoreGame hands to the question
// generation pipeline.
type GenerationRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// SQSSender is the slice of the SQS client the queue publisher uses.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// GenerationQueue publishes generation requests; the worker in workers/
// consumes them.
type GenerationQueue struct {
	client   SQSSender
	queueURL string
}

func NewGenerationQueue(client SQSSender, queueURL string) *GenerationQueue {
	return &GenerationQueue{client: client, queueURL: queueURL}
}

func (q *GenerationQueue) Enqueue(ctx context.Context, playerID, gameID string) error {
	body, err := json.Marshal(GenerationRequest{GameID: gameID, PlayerID: playerID})
	if err != nil {
		return fmt.Errorf("failed to marshal generation request: %w", err)
	}

	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return fmt.Errorf("failed to send generation request: %w", err)
	}
	return nil
}
