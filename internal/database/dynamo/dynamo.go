// Package dynamo maps the document service onto DynamoDB. Every collection
// is a table named "<database>.<collection>" keyed by partition key and id;
// a database is the table "<database>.__collections" holding the collection
// definitions.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"docsample/internal/config"
	"docsample/internal/docdb"
	"docsample/internal/lib/sl"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const (
	metaTable = "__collections"
	// attrPK holds the partition key value, prefixed so that an
	// unpartitioned collection still has a non-empty hash key.
	attrPK       = "_pk"
	pkPrefix     = "pk#"
	attrDef      = "definition"
	tableTimeout = 2 * time.Minute
)

var tableName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// API is the part of the DynamoDB client the backend uses.
type API interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

var _ docdb.Client = (*Client)(nil)

type Client struct {
	api     API
	waitMin time.Duration
	defs    map[string]docdb.CollectionDefinition
	mu      sync.RWMutex
	now     func() time.Time
	log     *slog.Logger
}

// New builds a client from the default AWS chain, overridden by static
// credentials and a custom endpoint when they are configured.
func New(ctx context.Context, conf *config.Config, log *slog.Logger) (*Client, error) {
	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Dynamo.Region),
	}
	if conf.Dynamo.AccessKeyId != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.Dynamo.AccessKeyId, conf.Dynamo.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if conf.Dynamo.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Dynamo.Endpoint)
		}
	})
	return NewWithAPI(api, log), nil
}

func NewWithAPI(api API, log *slog.Logger) *Client {
	return &Client{
		api:     api,
		waitMin: time.Second,
		defs:    make(map[string]docdb.CollectionDefinition),
		now:     time.Now,
		log:     log.With(sl.Module("dynamo")),
	}
}

func (c *Client) Close(_ context.Context) error {
	return nil
}

func table(database, collection string) string {
	return database + "." + collection
}

func validTable(op, name string) error {
	if len(name) < 3 || len(name) > 255 || !tableName.MatchString(name) {
		return docdb.NewError(op, http.StatusBadRequest, "invalid resource name "+name)
	}
	return nil
}

func charge(cc ...*types.ConsumedCapacity) float64 {
	var total float64
	for _, c := range cc {
		if c != nil && c.CapacityUnits != nil {
			total += *c.CapacityUnits
		}
	}
	return total
}

// classify maps SDK errors onto service status codes. A failed condition
// means different things per operation, so callers handle it themselves.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var docErr *docdb.Error
	if errors.As(err, &docErr) {
		return err
	}

	var (
		inUse     *types.ResourceInUseException
		notFound  *types.ResourceNotFoundException
		throttled *types.ProvisionedThroughputExceededException
		limited   *types.RequestLimitExceeded
		respErr   *awshttp.ResponseError
		apiErr    smithy.APIError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &inUse):
		status = http.StatusConflict
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &throttled), errors.As(err, &limited):
		status = http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException":
		status = http.StatusTooManyRequests
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "UnrecognizedClientException":
		status = http.StatusUnauthorized
	case errors.As(err, &respErr) && respErr.HTTPStatusCode() > 0:
		status = respErr.HTTPStatusCode()
	case errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient:
		status = http.StatusBadRequest
	}
	return docdb.Wrap(op, status, err)
}
