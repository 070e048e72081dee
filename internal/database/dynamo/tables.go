package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"docsample/internal/docdb"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (c *Client) CreateDatabase(ctx context.Context, id string) (*docdb.Response, error) {
	const op = "CreateDatabase"
	name := table(id, metaTable)
	if err := validTable(op, name); err != nil {
		return nil, err
	}
	out, err := c.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(docdb.PropertyID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(docdb.PropertyID), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return nil, classify(op, err)
	}
	if err = c.waitActive(ctx, name); err != nil {
		return nil, classify(op, err)
	}
	c.log.Debug("database created", slog.String("table", name), slog.String("status", tableStatus(out.TableDescription)))
	return &docdb.Response{StatusCode: http.StatusCreated}, nil
}

func (c *Client) CreateCollection(ctx context.Context, database string, def docdb.CollectionDefinition) (*docdb.Response, error) {
	const op = "CreateCollection"
	if def.ID == "" {
		return nil, docdb.NewError(op, http.StatusBadRequest, "collection id is required")
	}
	name := table(database, def.ID)
	if err := validTable(op, name); err != nil {
		return nil, err
	}

	meta := table(database, metaTable)
	if _, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(meta)}); err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, docdb.NewError(op, http.StatusNotFound, "database "+database+" not found")
		}
		return nil, classify(op, err)
	}

	_, err := c.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(docdb.PropertyID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(docdb.PropertyID), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	switch {
	case errors.As(err, &inUse):
		// a table without its definition record is left over from a failed
		// attempt, the conditional put below decides the conflict
		c.log.Debug("collection table exists", slog.String("table", name))
	case err != nil:
		return nil, classify(op, err)
	}
	if err = c.waitActive(ctx, name); err != nil {
		return nil, classify(op, err)
	}

	data, err := json.Marshal(def)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusBadRequest, err)
	}
	cond, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(docdb.PropertyID))).
		Build()
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
	}
	out, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(meta),
		Item: map[string]types.AttributeValue{
			docdb.PropertyID: &types.AttributeValueMemberS{Value: def.ID},
			attrDef:          &types.AttributeValueMemberS{Value: string(data)},
		},
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
		ReturnConsumedCapacity:    types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, docdb.Wrap(op, http.StatusConflict, err)
		}
		return nil, classify(op, err)
	}

	c.mu.Lock()
	c.defs[name] = def
	c.mu.Unlock()

	c.log.Debug("collection created", slog.String("table", name))
	return &docdb.Response{StatusCode: http.StatusCreated, RequestCharge: charge(out.ConsumedCapacity)}, nil
}

func (c *Client) waitActive(ctx context.Context, name string) error {
	waiter := dynamodb.NewTableExistsWaiter(c.api, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = c.waitMin
	})
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, tableTimeout)
}

// definition loads a collection definition from the database table and
// caches it.
func (c *Client) definition(ctx context.Context, op string, link docdb.CollectionLink) (string, docdb.CollectionDefinition, error) {
	name := table(link.Database, link.Collection)
	c.mu.RLock()
	def, ok := c.defs[name]
	c.mu.RUnlock()
	if ok {
		return name, def, nil
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table(link.Database, metaTable)),
		Key:            map[string]types.AttributeValue{docdb.PropertyID: &types.AttributeValueMemberS{Value: link.Collection}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return name, def, classify(op, err)
	}
	raw, ok := out.Item[attrDef].(*types.AttributeValueMemberS)
	if !ok {
		return name, def, docdb.NewError(op, http.StatusNotFound, "collection "+link.String()+" not found")
	}
	if err = json.Unmarshal([]byte(raw.Value), &def); err != nil {
		return name, def, docdb.Wrap(op, http.StatusInternalServerError, err)
	}

	c.mu.Lock()
	c.defs[name] = def
	c.mu.Unlock()
	return name, def, nil
}

func tableStatus(desc *types.TableDescription) string {
	if desc == nil {
		return ""
	}
	return string(desc.TableStatus)
}
