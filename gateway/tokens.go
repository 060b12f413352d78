// gateway/tokens.go
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"trivia-quiz-system/models"
	"trivia-quiz-system/utils"
)

// DefaultTokenTTL is how long a resolved token stays cached before the
// identity exchange has to be repeated.
const DefaultTokenTTL = time.Hour

// TokenCache maps bearer tokens to resolved players, keyed by a one-way
// hash; raw tokens are never stored. Entries past their expiration are
// treated as absent.
type TokenCache struct {
	client DynamoDBAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
}

type tokenRecord struct {
	TokenHash       string `dynamodbav:"TokenHash"`
	PlayerID        string `dynamodbav:"PlayerId"`
	ExpirationEpoch int64  `dynamodbav:"ExpirationEpoch"`
}

func NewTokenCache(client DynamoDBAPI, table string) *TokenCache {
	return &TokenCache{
		client: client,
		table:  table,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
}

// Resolve returns the cached player for the token, or ErrUnknownToken when
// there is no live entry. The cache never talks to an identity provider;
// on ErrUnknownToken the caller performs the exchange and calls Remember.
func (c *TokenCache) Resolve(ctx context.Context, token string) (models.Player, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"TokenHash": &types.AttributeValueMemberS{Value: utils.MD5Hex(token)},
		},
	})
	if err != nil {
		return models.Player{}, fmt.Errorf("failed to look up token: %w", err)
	}
	if out.Item == nil {
		return models.Player{}, ErrUnknownToken
	}

	var record tokenRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return models.Player{}, fmt.Errorf("failed to unmarshal token record: %w", err)
	}
	if record.ExpirationEpoch <= c.now().Unix() {
		return models.Player{}, ErrUnknownToken
	}

	return models.Player{ID: record.PlayerID}, nil
}

// Remember stores the token→player mapping, overwriting any prior entry for
// the same hash.
func (c *TokenCache) Remember(ctx context.Context, token string, player models.Player) error {
	item, err := attributevalue.MarshalMap(tokenRecord{
		TokenHash:       utils.MD5Hex(token),
		PlayerID:        player.ID,
		ExpirationEpoch: c.now().Add(c.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	if _, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to store token record: %w", err)
	}
	return nil
}

// DeleteExpired removes entries whose expiration has passed and reports how
// many were dropped. Resolve already treats them as absent; the sweep just
// keeps the table from growing without bound.
func (c *TokenCache) DeleteExpired(ctx context.Context) (int, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(c.table),
		FilterExpression: aws.String("ExpirationEpoch <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", c.now().Unix())},
		},
		ProjectionExpression: aws.String("TokenHash"),
	}

	deleted := 0
	var startKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = startKey
		out, err := c.client.Scan(ctx, input)
		if err != nil {
			return deleted, fmt.Errorf("failed to scan expired tokens: %w", err)
		}

		for _, item := range out.Items {
			if _, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(c.table),
				Key:       map[string]types.AttributeValue{"TokenHash": item["TokenHash"]},
			}); err != nil {
				return deleted, fmt.Errorf("failed to delete expired token: %w", err)
			}
			deleted++
		}

		if out.LastEvaluatedKey == nil {
			return deleted, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
