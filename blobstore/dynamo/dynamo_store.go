package dynamo

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/docdb/blobstore"
)

var _ blobstore.WritableStore = (*Store)(nil)

// Client is the interface for DynamoDB operations.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Options configures a Store.
type Options struct {
	// KeyAttribute is the partition key attribute. Default: "ref"
	KeyAttribute string
	// ContentAttribute holds the document body. Default: "content"
	ContentAttribute string
	// ConsistentRead requests strongly consistent reads.
	ConsistentRead bool
}

// Store implements blobstore.Store backed by a DynamoDB table.
type Store struct {
	client Client
	table  string
	opts   Options
}

// NewStore creates a new DynamoDB content store.
func NewStore(client Client, table string, optFns ...func(o *Options)) *Store {
	opts := Options{
		KeyAttribute:     "ref",
		ContentAttribute: "content",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		client: client,
		table:  table,
		opts:   opts,
	}
}

// Get reads the body of the item keyed by name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			s.opts.KeyAttribute: &types.AttributeValueMemberS{Value: name},
		},
		ProjectionExpression:     aws.String("#c"),
		ExpressionAttributeNames: map[string]string{"#c": s.opts.ContentAttribute},
		ConsistentRead:           aws.Bool(s.opts.ConsistentRead),
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return nil, fmt.Errorf("dynamo: table %q: %w", s.table, err)
		}
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, blobstore.ErrNotFound
	}

	switch v := out.Item[s.opts.ContentAttribute].(type) {
	case *types.AttributeValueMemberS:
		return []byte(v.Value), nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case nil:
		return nil, fmt.Errorf("dynamo: item %q has no %q attribute", name, s.opts.ContentAttribute)
	default:
		return nil, fmt.Errorf("dynamo: item %q attribute %q has unsupported type %T", name, s.opts.ContentAttribute, v)
	}
}

// Put stores data as the body of the item keyed by name. Valid UTF-8 is
// stored as a string attribute, anything else as binary.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	var content types.AttributeValue
	if utf8.Valid(data) {
		content = &types.AttributeValueMemberS{Value: string(data)}
	} else {
		content = &types.AttributeValueMemberB{Value: data}
	}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			s.opts.KeyAttribute:     &types.AttributeValueMemberS{Value: name},
			s.opts.ContentAttribute: content,
		},
	})
	return err
}
