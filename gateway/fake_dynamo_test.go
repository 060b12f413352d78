// gateway/fake_dynamo_test.go
package gateway

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	gamesTable     = "games-test"
	questionsTable = "questions-test"
	tokensTable    = "tokens-test"
)

// fakeDynamo is an in-memory stand-in for DynamoDB. It evaluates the
// condition, filter and update expressions the gateway actually issues and
// serves queries in small pages so the lazy pager gets exercised.
type fakeDynamo struct {
	keySchemas map[string][]string
	items      map[string][]map[string]types.AttributeValue
	pageSize   int
	queryCalls int
}

func newFakeDynamo(pageSize int) *fakeDynamo {
	return &fakeDynamo{
		keySchemas: map[string][]string{
			gamesTable:     {"PlayerId", "GameId"},
			questionsTable: {"GameId", "QuestionId"},
			tokensTable:    {"TokenHash"},
		},
		items:    map[string][]map[string]types.AttributeValue{},
		pageSize: pageSize,
	}
}

func attrEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	}
	return false
}

func attrNumber(a types.AttributeValue) float64 {
	n, ok := a.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseFloat(n.Value, 64)
	return v
}

func attrLess(a, b types.AttributeValue) bool {
	if av, ok := a.(*types.AttributeValueMemberN); ok {
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			return attrNumber(av) < attrNumber(bv)
		}
	}
	av, _ := a.(*types.AttributeValueMemberS)
	bv, _ := b.(*types.AttributeValueMemberS)
	if av == nil || bv == nil {
		return false
	}
	return av.Value < bv.Value
}

func (f *fakeDynamo) keyOf(table string, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	key := map[string]types.AttributeValue{}
	for _, attr := range f.keySchemas[table] {
		key[attr] = item[attr]
	}
	return key
}

func (f *fakeDynamo) find(table string, key map[string]types.AttributeValue) int {
	for i, item := range f.items[table] {
		match := true
		for attr, want := range key {
			if item[attr] == nil || !attrEqual(item[attr], want) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// evalCondition covers the clause shapes the gateway uses:
// attribute_exists, attribute_not_exists, <> and <= against a value ref.
func evalCondition(expr string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) bool {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_exists("):
			attr := strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")")
			if item == nil || item[attr] == nil {
				return false
			}
		case strings.HasPrefix(clause, "attribute_not_exists("):
			attr := strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")")
			if item != nil && item[attr] != nil {
				return false
			}
		case strings.Contains(clause, " <> "):
			attr, ref, _ := strings.Cut(clause, " <> ")
			if item == nil || item[strings.TrimSpace(attr)] == nil {
				return false
			}
			if attrEqual(item[strings.TrimSpace(attr)], values[strings.TrimSpace(ref)]) {
				return false
			}
		case strings.Contains(clause, " <= "):
			attr, ref, _ := strings.Cut(clause, " <= ")
			if item == nil || item[strings.TrimSpace(attr)] == nil {
				return false
			}
			if attrNumber(item[strings.TrimSpace(attr)]) > attrNumber(values[strings.TrimSpace(ref)]) {
				return false
			}
		default:
			panic("fakeDynamo: unsupported condition clause: " + clause)
		}
	}
	return true
}

func applySet(item map[string]types.AttributeValue, expr string, values map[string]types.AttributeValue) {
	expr = strings.TrimPrefix(expr, "SET ")
	for _, assign := range strings.Split(expr, ", ") {
		attr, ref, ok := strings.Cut(assign, " = ")
		if !ok {
			panic("fakeDynamo: unsupported update expression: " + expr)
		}
		item[strings.TrimSpace(attr)] = values[strings.TrimSpace(ref)]
	}
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	table := aws.ToString(params.TableName)
	idx := f.find(table, params.Key)
	if idx < 0 {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: f.items[table][idx]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	table := aws.ToString(params.TableName)
	idx := f.find(table, f.keyOf(table, params.Item))

	if params.ConditionExpression != nil {
		var existing map[string]types.AttributeValue
		if idx >= 0 {
			existing = f.items[table][idx]
		}
		if !evalCondition(*params.ConditionExpression, existing, params.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}

	if idx >= 0 {
		f.items[table][idx] = params.Item
	} else {
		f.items[table] = append(f.items[table], params.Item)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	table := aws.ToString(params.TableName)
	idx := f.find(table, params.Key)
	var existing map[string]types.AttributeValue
	if idx >= 0 {
		existing = f.items[table][idx]
	}

	if params.ConditionExpression != nil &&
		!evalCondition(*params.ConditionExpression, existing, params.ExpressionAttributeValues) {
		failure := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		if params.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
			failure.Item = existing
		}
		return nil, failure
	}

	if existing == nil {
		existing = map[string]types.AttributeValue{}
		for attr, v := range params.Key {
			existing[attr] = v
		}
		f.items[table] = append(f.items[table], existing)
		idx = len(f.items[table]) - 1
	}
	applySet(existing, aws.ToString(params.UpdateExpression), params.ExpressionAttributeValues)
	f.items[table][idx] = existing
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	table := aws.ToString(params.TableName)
	idx := f.find(table, params.Key)
	if idx >= 0 {
		f.items[table] = append(f.items[table][:idx], f.items[table][idx+1:]...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query filters per page, the way DynamoDB does: a page may come back empty
// but still carry a LastEvaluatedKey.
func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryCalls++
	table := aws.ToString(params.TableName)

	attr, ref, _ := strings.Cut(aws.ToString(params.KeyConditionExpression), " = ")
	attr = strings.TrimSpace(attr)
	want := params.ExpressionAttributeValues[strings.TrimSpace(ref)]

	var matched []map[string]types.AttributeValue
	for _, item := range f.items[table] {
		if item[attr] != nil && attrEqual(item[attr], want) {
			matched = append(matched, item)
		}
	}

	sortAttr := f.keySchemas[table][len(f.keySchemas[table])-1]
	if params.IndexName != nil {
		sortAttr = "CreationTime"
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return attrLess(matched[i][sortAttr], matched[j][sortAttr])
	})
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	start := 0
	if params.ExclusiveStartKey != nil {
		for i, item := range matched {
			match := true
			for keyAttr, v := range params.ExclusiveStartKey {
				if item[keyAttr] == nil || !attrEqual(item[keyAttr], v) {
					match = false
					break
				}
			}
			if match {
				start = i + 1
				break
			}
		}
	}

	limit := f.pageSize
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]

	out := &dynamodb.QueryOutput{}
	for _, item := range page {
		if params.FilterExpression != nil &&
			!evalCondition(*params.FilterExpression, item, params.ExpressionAttributeValues) {
			continue
		}
		out.Items = append(out.Items, item)
	}
	out.Count = int32(len(out.Items))
	if end < len(matched) {
		out.LastEvaluatedKey = f.keyOf(table, matched[end-1])
	}
	if params.Select == types.SelectCount {
		out.Items = nil
	}
	return out, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	table := aws.ToString(params.TableName)

	out := &dynamodb.ScanOutput{}
	for _, item := range f.items[table] {
		if params.FilterExpression != nil &&
			!evalCondition(*params.FilterExpression, item, params.ExpressionAttributeValues) {
			continue
		}
		out.Items = append(out.Items, item)
	}
	out.Count = int32(len(out.Items))
	return out, nil
}
