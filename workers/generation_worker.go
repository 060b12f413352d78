package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"trivia-quiz-system/gateway"
	"trivia-quiz-system/metrics"
	"trivia-quiz-system/models"
)

// SQSReceiver is the slice of the SQS client the worker consumes with.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// QuestionDesigner produces the full question set for a game.
type QuestionDesigner interface {
	DesignGame(ctx context.Context, game *models.Game) ([]*models.Question, error)
}

// GenerationWorker consumes generation requests queued by StoreGame: it
// designs the questions, stores them and flips the game to READY. A failed
// request is left on the queue for redelivery.
type GenerationWorker struct {
	Queue    SQSReceiver
	QueueURL string
	Gateway  gateway.Gateway
	Designer QuestionDesigner
}

func NewGenerationWorker(queue SQSReceiver, queueURL string, gw gateway.Gateway, designer QuestionDesigner) *GenerationWorker {
	return &GenerationWorker{
		Queue:    queue,
		QueueURL: queueURL,
		Gateway:  gw,
		Designer: designer,
	}
}

func (w *GenerationWorker) Run(ctx context.Context) {
	log.Println("Starting question generation worker...")

	for {
		select {
		case <-ctx.Done():
			log.Println("Question generation worker stopped.")
			return
		default:
		}

		out, err := w.Queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.QueueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("❌ Error receiving generation requests: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			if err := w.Handle(ctx, aws.ToString(msg.Body)); err != nil {
				log.Printf("❌ Generation request failed, leaving for redelivery: %v", err)
				metrics.GenerationFailures.Inc()
				continue
			}

			if _, err := w.Queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(w.QueueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				log.Printf("⚠️  Failed to delete handled message: %v", err)
			}
		}
	}
}

// Handle processes a single generation request. Redeliveries are safe: the
// insert-once question writes make a duplicate run converge on the same
// stored state instead of overwriting it.
func (w *GenerationWorker) Handle(ctx context.Context, body string) error {
	var req gateway.GenerationRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return fmt.Errorf("malformed generation request: %w", err)
	}

	player := models.Player{ID: req.PlayerID}
	game, err := w.Gateway.GetGame(ctx, player, req.GameID)
	if err != nil {
		return err
	}
	if game.Status != models.StatusPending {
		log.Printf("Game %s is already %s, skipping generation", game.ID, game.Status)
		return nil
	}

	started := time.Now()
	questions, err := w.Designer.DesignGame(ctx, game)
	if err != nil {
		return err
	}

	// Questions are stored one by one, tolerating the insert-once conflict
	// per question. A redelivery after a crash mid-batch must fill in the
	// missing suffix, not bail at the first already-stored index and flip an
	// under-filled game READY.
	for _, question := range questions {
		err := w.Gateway.StoreGameQuestion(ctx, game, question)
		if err != nil && !errors.Is(err, gateway.ErrQuestionExists) {
			return err
		}
	}

	game.Status = models.StatusReady
	if err := w.Gateway.UpdateGameStatus(ctx, player, game); err != nil {
		return err
	}

	metrics.QuestionsGenerated.Add(float64(len(questions)))
	metrics.GenerationDuration.Observe(time.Since(started).Seconds())
	log.Printf("✅ Generated %d question(s) for game %s", len(questions), game.ID)
	return nil
}
