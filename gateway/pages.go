// gateway/pages.go
package gateway

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"trivia-quiz-system/models"
)

// queryPager walks a DynamoDB query one page at a time, fetching the next
// page only when the buffered one is exhausted. Callers that stop early
// never pay for pages they did not read, which is what makes a
// "first unanswered question" lookup cheap.
type queryPager struct {
	client  DynamoDBAPI
	input   *dynamodb.QueryInput
	buf     []map[string]types.AttributeValue
	lastKey map[string]types.AttributeValue
	started bool
	done    bool
}

func newQueryPager(client DynamoDBAPI, input *dynamodb.QueryInput) *queryPager {
	return &queryPager{client: client, input: input}
}

func (p *queryPager) next(ctx context.Context) (map[string]types.AttributeValue, bool, error) {
	for len(p.buf) == 0 {
		if p.done || (p.started && p.lastKey == nil) {
			p.done = true
			return nil, false, nil
		}

		input := *p.input
		input.ExclusiveStartKey = p.lastKey
		out, err := p.client.Query(ctx, &input)
		if err != nil {
			return nil, false, fmt.Errorf("query failed: %w", err)
		}
		p.started = true
		p.lastKey = out.LastEvaluatedKey
		p.buf = out.Items
	}

	item := p.buf[0]
	p.buf = p.buf[1:]
	return item, true, nil
}

type gameIterator struct {
	pager *queryPager
}

func (it *gameIterator) Next(ctx context.Context) (models.Game, bool, error) {
	item, ok, err := it.pager.next(ctx)
	if err != nil || !ok {
		return models.Game{}, false, err
	}

	var record gameRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return models.Game{}, false, fmt.Errorf("failed to unmarshal game record: %w", err)
	}
	return record.toGame(), true, nil
}

type questionIterator struct {
	pager *queryPager
}

func (it *questionIterator) Next(ctx context.Context) (models.Question, bool, error) {
	item, ok, err := it.pager.next(ctx)
	if err != nil || !ok {
		return models.Question{}, false, err
	}

	var record questionRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return models.Question{}, false, fmt.Errorf("failed to unmarshal question record: %w", err)
	}
	return record.toQuestion(), true, nil
}
