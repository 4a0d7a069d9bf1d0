package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"amora_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type tableSchema struct {
	pk, sk string
}

var testSchemas = map[string]tableSchema{
	models.UserProfilesTable:   {pk: "id"},
	models.HobbiesTable:        {pk: "id"},
	models.MatchesTable:        {pk: "id"},
	models.ChannelsTable:       {pk: "id"},
	models.ChannelMembersTable: {pk: "user_id", sk: "channel_id"},
	models.MessagesTable:       {pk: "channel_id", sk: "created_at"},
}

type avItem = map[string]types.AttributeValue

// fakeDynamo is an in-memory DynamoAPI understanding the expression subset the
// services emit: "a = b" clauses joined by AND, comparison operators on
// strings, SET updates and attribute_not_exists conditions.
type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string][]avItem
	fail   map[string]error
	calls  map[string]int

	// backlog is the number of write requests BatchWriteItem still hands
	// back as unprocessed.
	backlog int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		tables: map[string][]avItem{},
		fail:   map[string]error{},
		calls:  map[string]int{},
	}
}

func newTestDynamo() (*DynamoService, *fakeDynamo) {
	fake := newFakeDynamo()
	return NewDynamoService(fake, zerolog.Nop()), fake
}

func (f *fakeDynamo) seed(table string, v interface{}) {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = append(f.tables[table], av)
}

func (f *fakeDynamo) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *fakeDynamo) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDynamo) setFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeDynamo) throttle(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backlog = n
}

func (f *fakeDynamo) enter(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeDynamo) find(table string, key avItem) int {
	schema := testSchemas[table]
	for i, it := range f.tables[table] {
		if !sameString(it[schema.pk], key[schema.pk]) {
			continue
		}
		if schema.sk != "" && !sameString(it[schema.sk], key[schema.sk]) {
			continue
		}
		return i
	}
	return -1
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	table := aws.ToString(in.TableName)
	if i := f.find(table, in.Key); i >= 0 {
		return &dynamodb.GetItemOutput{Item: copyItem(f.tables[table][i])}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	table := aws.ToString(in.TableName)
	i := f.find(table, in.Item)
	if strings.HasPrefix(aws.ToString(in.ConditionExpression), "attribute_not_exists") && i >= 0 {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	if i >= 0 {
		f.tables[table][i] = copyItem(in.Item)
	} else {
		f.tables[table] = append(f.tables[table], copyItem(in.Item))
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	table := aws.ToString(in.TableName)
	i := f.find(table, in.Key)
	if i < 0 {
		f.tables[table] = append(f.tables[table], copyItem(in.Key))
		i = len(f.tables[table]) - 1
	}
	target := f.tables[table][i]

	expr := strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET ")
	for _, clause := range strings.Split(expr, ",") {
		parts := strings.SplitN(strings.TrimSpace(clause), " = ", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("fake: unsupported update clause %q", clause)
		}
		target[resolveName(parts[0], in.ExpressionAttributeNames)] = in.ExpressionAttributeValues[parts[1]]
	}
	return &dynamodb.UpdateItemOutput{Attributes: copyItem(target)}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	table := aws.ToString(in.TableName)
	schema := testSchemas[table]

	var matched []avItem
	for _, it := range f.tables[table] {
		if !matches(it, aws.ToString(in.KeyConditionExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			continue
		}
		if in.FilterExpression != nil && !matches(it, aws.ToString(in.FilterExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			continue
		}
		matched = append(matched, copyItem(it))
	}

	if schema.sk != "" && in.IndexName == nil {
		sort.SliceStable(matched, func(i, j int) bool {
			a, _ := stringOf(matched[i][schema.sk])
			b, _ := stringOf(matched[j][schema.sk])
			return a < b
		})
	}
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if in.Limit != nil && int(*in.Limit) < len(matched) {
		matched = matched[:*in.Limit]
	}

	if in.Select == types.SelectCount {
		return &dynamodb.QueryOutput{Count: int32(len(matched))}, nil
	}
	return &dynamodb.QueryOutput{Items: matched, Count: int32(len(matched))}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Scan"); err != nil {
		return nil, err
	}
	var items []avItem
	for _, it := range f.tables[aws.ToString(in.TableName)] {
		items = append(items, copyItem(it))
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("BatchWriteItem"); err != nil {
		return nil, err
	}
	unprocessed := map[string][]types.WriteRequest{}
	for table, reqs := range in.RequestItems {
		if n := min(f.backlog, len(reqs)); n > 0 {
			f.backlog -= n
			unprocessed[table] = reqs[len(reqs)-n:]
			reqs = reqs[:len(reqs)-n]
		}
		for _, req := range reqs {
			if req.PutRequest == nil {
				continue
			}
			if i := f.find(table, req.PutRequest.Item); i >= 0 {
				f.tables[table][i] = copyItem(req.PutRequest.Item)
			} else {
				f.tables[table] = append(f.tables[table], copyItem(req.PutRequest.Item))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil
}

func matches(it avItem, expr string, names map[string]string, values map[string]types.AttributeValue) bool {
	if expr == "" {
		return true
	}
	for _, clause := range strings.Split(expr, " AND ") {
		fields := strings.Fields(clause)
		if len(fields) != 3 {
			panic("fake: unsupported condition " + clause)
		}
		left, lok := stringOf(it[resolveName(fields[0], names)])
		right, rok := stringOf(values[fields[2]])
		if !lok || !rok {
			if fields[1] == "<>" {
				continue
			}
			return false
		}
		var ok bool
		switch fields[1] {
		case "=":
			ok = left == right
		case "<>":
			ok = left != right
		case ">":
			ok = left > right
		case "<":
			ok = left < right
		case ">=":
			ok = left >= right
		case "<=":
			ok = left <= right
		default:
			panic("fake: unsupported operator " + fields[1])
		}
		if !ok {
			return false
		}
	}
	return true
}

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		return names[token]
	}
	return token
}

func stringOf(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	case *types.AttributeValueMemberBOOL:
		if v.Value {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

func sameString(a, b types.AttributeValue) bool {
	x, ok1 := stringOf(a)
	y, ok2 := stringOf(b)
	return ok1 && ok2 && x == y
}

func copyItem(in avItem) avItem {
	out := make(avItem, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
