package store

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/xerrors"
)

// DynamoDBAPI is the subset of the SDK client used by DynamoDB. Tests supply
// their own implementation through WithAPI.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

const (
	appendExpr    = "SET user_hashes = list_append(if_not_exists(user_hashes, :empty), :user_hash)"
	incrementExpr = "SET visits = if_not_exists(visits, :zero) + :incr"
)

// DynamoDB is a single-table store keyed by the string hash key "pk".
// It is safe for concurrent use by multiple goroutines.
type DynamoDB struct {
	api      DynamoDBAPI
	table    string
	endpoint string
}

type DynamoDBOption func(*DynamoDB)

// WithAPI replaces the SDK client built from the aws.Config.
func WithAPI(api DynamoDBAPI) DynamoDBOption {
	return func(d *DynamoDB) { d.api = api }
}

// WithEndpoint points the client at a non-AWS endpoint such as DynamoDB Local.
func WithEndpoint(url string) DynamoDBOption {
	return func(d *DynamoDB) { d.endpoint = url }
}

func NewDynamoDB(cfg aws.Config, table string, opts ...DynamoDBOption) *DynamoDB {
	d := &DynamoDB{table: table}
	for _, opt := range opts {
		opt(d)
	}
	if d.api == nil {
		d.api = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if d.endpoint != "" {
				o.BaseEndpoint = aws.String(d.endpoint)
			}
		})
	}
	return d
}

type dynamoItem struct {
	PK         string   `dynamodbav:"pk"`
	UserHashes []string `dynamodbav:"user_hashes,omitempty"`
	Visits     *int64   `dynamodbav:"visits,omitempty"`
}

func (d *DynamoDB) keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		HashKey: &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoDB) Get(ctx context.Context, key string) (*Item, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       d.keyOf(key),
	})
	if err != nil {
		return nil, xerrors.Errorf("get item %q: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var row dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, xerrors.Errorf("decode item %q: %w", key, err)
	}
	return &Item{Key: key, UserHashes: row.UserHashes, Visits: row.Visits}, nil
}

func (d *DynamoDB) AppendUserHash(ctx context.Context, key, hash string) error {
	_, err := d.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              d.keyOf(key),
		UpdateExpression: aws.String(appendExpr),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":user_hash": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: hash},
			}},
		},
	})
	if err != nil {
		return xerrors.Errorf("append to %q: %w", key, err)
	}
	return nil
}

func (d *DynamoDB) IncrementVisits(ctx context.Context, key string, delta int64) (*int64, error) {
	out, err := d.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              d.keyOf(key),
		UpdateExpression: aws.String(incrementExpr),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":incr": &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return nil, xerrors.Errorf("increment %q: %w", key, err)
	}

	av, ok := out.Attributes[AttrVisits]
	if !ok {
		return nil, nil
	}
	var n int64
	if err := attributevalue.Unmarshal(av, &n); err != nil {
		return nil, xerrors.Errorf("decode %s of %q: %w", AttrVisits, key, err)
	}
	return &n, nil
}

func (d *DynamoDB) Ping(ctx context.Context) error {
	_, err := d.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	if err != nil {
		return xerrors.Errorf("describe table %q: %w", d.table, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (d *DynamoDB) Close() error { return nil }
