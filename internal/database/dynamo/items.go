package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"docsample/internal/docdb"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const defaultMaxItemCount = 100

func (c *Client) CreateDocument(ctx context.Context, link docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "CreateDocument"
	cond := expression.AttributeNotExists(expression.Name(docdb.PropertyID))
	resp, _, err := c.put(ctx, op, link, doc, "", opts, &cond)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, docdb.Wrap(op, http.StatusConflict, err)
		}
		return nil, classify(op, err)
	}
	resp.StatusCode = http.StatusCreated
	return resp, nil
}

func (c *Client) UpsertDocument(ctx context.Context, link docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "UpsertDocument"
	var cond *expression.ConditionBuilder
	if ifMatch := docdb.IfMatch(opts); ifMatch != "" {
		match := expression.AttributeNotExists(expression.Name(docdb.PropertyID)).
			Or(expression.Name(docdb.PropertyETag).Equal(expression.Value(ifMatch)))
		cond = &match
	}
	resp, old, err := c.put(ctx, op, link, doc, "", opts, cond)
	if err != nil {
		return nil, c.failedCondition(op, err)
	}
	resp.StatusCode = http.StatusOK
	if len(old) == 0 {
		resp.StatusCode = http.StatusCreated
	}
	return resp, nil
}

func (c *Client) ReplaceDocument(ctx context.Context, link docdb.DocumentLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "ReplaceDocument"
	resp, _, err := c.put(ctx, op, link.CollectionLink, doc, link.ID, opts, existsCondition(opts))
	if err != nil {
		return nil, c.failedCondition(op, err)
	}
	resp.StatusCode = http.StatusOK
	return resp, nil
}

func (c *Client) ReadDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "ReadDocument"
	name, def, err := c.definition(ctx, op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	pk, err := docdb.PointPartitionKey(op, def.PartitionKeyPath(), opts)
	if err != nil {
		return nil, err
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:              aws.String(name),
		Key:                    itemKey(pk, link.ID),
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return nil, classify(op, err)
	}
	if len(out.Item) == 0 {
		return nil, docdb.NewError(op, http.StatusNotFound, "document "+link.ID+" not found")
	}
	doc, err := fromItem(out.Item)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
	}

	resp := &docdb.ItemResponse{Response: docdb.Response{
		StatusCode:    http.StatusOK,
		RequestCharge: charge(out.ConsumedCapacity),
		ETag:          doc.ETag(),
	}}
	if inm := docdb.IfNoneMatch(opts); inm != "" && inm == doc.ETag() {
		resp.StatusCode = http.StatusNotModified
		return resp, nil
	}
	resp.Document = doc
	return resp, nil
}

func (c *Client) DeleteDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.Response, error) {
	const op = "DeleteDocument"
	name, def, err := c.definition(ctx, op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	pk, err := docdb.PointPartitionKey(op, def.PartitionKeyPath(), opts)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().WithCondition(*existsCondition(opts)).Build()
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
	}

	out, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                           aws.String(name),
		Key:                                 itemKey(pk, link.ID),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		ReturnConsumedCapacity:              types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return nil, c.failedCondition(op, err)
	}
	return &docdb.Response{StatusCode: http.StatusNoContent, RequestCharge: charge(out.ConsumedCapacity)}, nil
}

func (c *Client) ReadDocuments(ctx context.Context, link docdb.CollectionLink, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return c.feed(ctx, "ReadDocuments", link, docdb.Query{}, opts)
}

func (c *Client) QueryDocuments(ctx context.Context, link docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return c.feed(ctx, "QueryDocuments", link, query, opts)
}

// put writes a stamped copy of doc and returns the replaced item when there
// was one.
func (c *Client) put(ctx context.Context, op string, link docdb.CollectionLink, doc docdb.Document, id string, opts *docdb.RequestOptions, cond *expression.ConditionBuilder) (*docdb.ItemResponse, map[string]types.AttributeValue, error) {
	name, def, err := c.definition(ctx, op, link)
	if err != nil {
		return nil, nil, err
	}
	stored, pk, err := docdb.Stamp(op, doc, def.PartitionKeyPath(), id, opts, docdb.NewETag(), c.now())
	if err != nil {
		return nil, nil, err
	}
	item, err := toItem(stored, pk)
	if err != nil {
		return nil, nil, docdb.Wrap(op, http.StatusBadRequest, err)
	}

	input := &dynamodb.PutItemInput{
		TableName:                           aws.String(name),
		Item:                                item,
		ReturnValues:                        types.ReturnValueAllOld,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		ReturnConsumedCapacity:              types.ReturnConsumedCapacityTotal,
	}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return nil, nil, docdb.Wrap(op, http.StatusInternalServerError, err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	out, err := c.api.PutItem(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return &docdb.ItemResponse{
		Response: docdb.Response{RequestCharge: charge(out.ConsumedCapacity), ETag: stored.ETag()},
		Document: stored,
	}, out.Attributes, nil
}

// failedCondition tells a missing item from an ETag mismatch by the item
// returned with the failed check.
func (c *Client) failedCondition(op string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return classify(op, err)
	}
	if len(ccf.Item) == 0 {
		return docdb.Wrap(op, http.StatusNotFound, err)
	}
	return docdb.Wrap(op, http.StatusPreconditionFailed, err)
}

func existsCondition(opts *docdb.RequestOptions) *expression.ConditionBuilder {
	cond := expression.AttributeExists(expression.Name(docdb.PropertyID))
	if ifMatch := docdb.IfMatch(opts); ifMatch != "" {
		cond = cond.And(expression.Name(docdb.PropertyETag).Equal(expression.Value(ifMatch)))
	}
	return &cond
}

func (c *Client) feed(ctx context.Context, op string, link docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	name, _, err := c.definition(ctx, op, link)
	if err != nil {
		return nil, err
	}
	o := docdb.Feed(opts)

	limit := o.MaxItemCount
	if limit <= 0 {
		limit = defaultMaxItemCount
	}
	var startKey map[string]types.AttributeValue
	if o.Continuation != "" {
		cursor, err := docdb.DecodeCursor(o.Continuation)
		if err != nil {
			return nil, docdb.Wrap(op, http.StatusBadRequest, err)
		}
		startKey = itemKey(cursor.PK, cursor.ID)
	}

	builder, err := feedExpression(o.PartitionKey, query)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusBadRequest, err)
	}
	var (
		items    []map[string]types.AttributeValue
		lastKey  map[string]types.AttributeValue
		consumed *types.ConsumedCapacity
	)
	if o.PartitionKey != "" {
		expr, err := builder.Build()
		if err != nil {
			return nil, docdb.Wrap(op, http.StatusBadRequest, err)
		}
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(name),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
			Limit:                     aws.Int32(int32(limit)),
			ConsistentRead:            aws.Bool(true),
			ReturnConsumedCapacity:    types.ReturnConsumedCapacityTotal,
		})
		if err != nil {
			return nil, classify(op, err)
		}
		items, lastKey, consumed = out.Items, out.LastEvaluatedKey, out.ConsumedCapacity
	} else {
		input := &dynamodb.ScanInput{
			TableName:              aws.String(name),
			ExclusiveStartKey:      startKey,
			Limit:                  aws.Int32(int32(limit)),
			ConsistentRead:         aws.Bool(true),
			ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
		}
		if len(query.Conditions) > 0 {
			expr, err := builder.Build()
			if err != nil {
				return nil, docdb.Wrap(op, http.StatusBadRequest, err)
			}
			input.FilterExpression = expr.Filter()
			input.ExpressionAttributeNames = expr.Names()
			input.ExpressionAttributeValues = expr.Values()
		}
		out, err := c.api.Scan(ctx, input)
		if err != nil {
			return nil, classify(op, err)
		}
		items, lastKey, consumed = out.Items, out.LastEvaluatedKey, out.ConsumedCapacity
	}

	resp := &docdb.FeedResponse{Response: docdb.Response{StatusCode: http.StatusOK, RequestCharge: charge(consumed)}}
	for _, item := range items {
		doc, err := fromItem(item)
		if err != nil {
			return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
		}
		resp.Documents = append(resp.Documents, doc)
	}
	if len(lastKey) > 0 {
		cursor, err := keyCursor(lastKey)
		if err != nil {
			return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
		}
		resp.Continuation = cursor.Encode()
	}

	c.log.Debug("feed page",
		slog.String("table", name),
		slog.Int("count", len(resp.Documents)),
		slog.Bool("more", resp.Continuation != ""),
	)
	return resp, nil
}

// feedExpression builds the key condition of a partition scoped feed and the
// filter of the query conditions. Nested paths become dotted names.
func feedExpression(pk string, query docdb.Query) (expression.Builder, error) {
	builder := expression.NewBuilder()
	if pk != "" {
		builder = builder.WithKeyCondition(expression.Key(attrPK).Equal(expression.Value(pkPrefix + pk)))
	}
	var filter *expression.ConditionBuilder
	for _, cond := range query.Conditions {
		segs := docdb.PathSegments(cond.Path)
		if len(segs) == 0 {
			return builder, errors.New("query condition without a path")
		}
		eq := expression.Name(strings.Join(segs, ".")).Equal(expression.Value(cond.Value))
		if filter == nil {
			filter = &eq
			continue
		}
		and := filter.And(eq)
		filter = &and
	}
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	return builder, nil
}

func itemKey(pk, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK:           &types.AttributeValueMemberS{Value: pkPrefix + pk},
		docdb.PropertyID: &types.AttributeValueMemberS{Value: id},
	}
}

func keyCursor(key map[string]types.AttributeValue) (docdb.Cursor, error) {
	pk, ok1 := key[attrPK].(*types.AttributeValueMemberS)
	id, ok2 := key[docdb.PropertyID].(*types.AttributeValueMemberS)
	if !ok1 || !ok2 {
		return docdb.Cursor{}, fmt.Errorf("unexpected last evaluated key %v", key)
	}
	return docdb.Cursor{PK: strings.TrimPrefix(pk.Value, pkPrefix), ID: id.Value}, nil
}

func toItem(doc docdb.Document, pk string) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	item[attrPK] = &types.AttributeValueMemberS{Value: pkPrefix + pk}
	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (docdb.Document, error) {
	var raw map[string]any
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	delete(raw, attrPK)
	return docdb.ToDocument(raw)
}
