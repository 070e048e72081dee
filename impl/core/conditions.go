package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"docsample/entity"
	"docsample/internal/docdb"
)

var errUnexpectedStatus = errors.New("unexpected status")

// ReplaceDocumentWithConditions replaces the order under its current ETag,
// then shows that a second replace with the now stale ETag is rejected.
func (c *Core) ReplaceDocumentWithConditions(ctx context.Context, order *entity.SalesOrder) (*entity.SalesOrder, error) {
	c.printf("\n2.1 - Use ETag with ReplaceDocument for optimistic concurrency\n")

	if order.ETag == "" {
		return nil, fmt.Errorf("order %s has no etag", order.ID)
	}
	staleETag := order.ETag

	freight := order.Freight + 1
	result, _, err := c.replace(ctx, order, docdb.Document{entity.FieldFreight: freight}, &docdb.RequestOptions{IfMatch: staleETag})
	if err != nil {
		return nil, err
	}
	c.printf("ETag before replace: %s\n", staleETag)
	c.printf("ETag after replace:  %s\n", result.ETag)

	_, _, err = c.replace(ctx, order, docdb.Document{entity.FieldFreight: freight + 1}, &docdb.RequestOptions{IfMatch: staleETag})
	switch {
	case docdb.IsPreconditionFailed(err):
		c.printf("Replace with the previous ETag was rejected as expected: status %d\n", docdb.StatusOf(err))
	case err != nil:
		return nil, err
	default:
		return nil, fmt.Errorf("replace with stale etag succeeded: %w", errUnexpectedStatus)
	}
	return result, nil
}

// ReadDocumentWithConditions reads the order and then reads it again with
// If-None-Match, which the service answers with 304 Not Modified.
func (c *Core) ReadDocumentWithConditions(ctx context.Context, id, accountNumber string) error {
	c.printf("\n2.2 - Use ETag with ReadDocument to only return a result if the ETag of the request does not match\n")

	link := c.coll.Doc(id)
	resp, err := c.client.ReadDocument(ctx, link, &docdb.RequestOptions{PartitionKey: accountNumber})
	if err != nil {
		return fmt.Errorf("read document %s: %w", id, err)
	}
	etag := resp.Document.ETag()
	c.printf("ETag of read document: %s\n", etag)

	resp, err = c.client.ReadDocument(ctx, link, &docdb.RequestOptions{PartitionKey: accountNumber, IfNoneMatch: etag})
	if err != nil {
		return fmt.Errorf("read document %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusNotModified {
		return fmt.Errorf("conditional read of %s returned %d: %w", id, resp.StatusCode, errUnexpectedStatus)
	}
	c.printf("Document has not been modified: status %d\n", resp.StatusCode)
	return nil
}
