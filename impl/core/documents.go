package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"docsample/entity"
	"docsample/internal/docdb"
	"docsample/internal/lib/sl"
	"docsample/internal/lib/validate"
)

const upsertOrderID = "SalesOrder3"

func (c *Core) ReadDocument(ctx context.Context, id, accountNumber string) (*entity.SalesOrder, error) {
	c.printf("\n1.2 - Reading Document by Id\n")

	resp, err := c.client.ReadDocument(ctx, c.coll.Doc(id), &docdb.RequestOptions{PartitionKey: accountNumber})
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}
	order, err := entity.SalesOrderFromDocument(resp.Document)
	if err != nil {
		return nil, err
	}

	c.printf("Document read by Id %s\n", order.ID)
	c.printf("Request Units Charge for reading a Document by Id %v\n", resp.RequestCharge)
	return order, nil
}

// ReadDocuments pages through the whole collection.
func (c *Core) ReadDocuments(ctx context.Context) ([]*entity.SalesOrder, error) {
	c.printf("\n1.3 - Reading all documents in a collection\n")

	it := docdb.ReadFeed(c.client, c.coll, &docdb.FeedOptions{MaxItemCount: c.conf.PageSize})
	var orders []*entity.SalesOrder
	for it.Next(ctx) {
		order, err := entity.SalesOrderFromDocument(it.Document())
		if err != nil {
			return nil, err
		}
		c.printf("Document Id: %s\n", order.ID)
		orders = append(orders, order)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	c.log.Debug("documents read",
		slog.Int("count", len(orders)),
		slog.Int("pages", it.Pages()),
		sl.Charge(it.RequestCharge()),
	)
	return orders, nil
}

func (c *Core) accountQuery(accountNumber string) docdb.Query {
	return docdb.Equal("/account_number", accountNumber)
}

// FindOrders returns every order of the account.
func (c *Core) FindOrders(ctx context.Context, accountNumber string) ([]*entity.SalesOrder, error) {
	query := c.accountQuery(accountNumber)
	c.printf("Query: %s\n", query.Text())

	docs, err := docdb.QueryFeed(c.client, c.coll, query, &docdb.FeedOptions{MaxItemCount: c.conf.PageSize}).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	orders := make([]*entity.SalesOrder, 0, len(docs))
	for _, doc := range docs {
		order, err := entity.SalesOrderFromDocument(doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// QueryDocuments returns the first order of the account.
func (c *Core) QueryDocuments(ctx context.Context, accountNumber string) (*entity.SalesOrder, error) {
	c.printf("\n1.4 - Querying for a document using its AccountNumber property\n")

	orders, err := c.FindOrders(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("account %s: %w", accountNumber, ErrOrderNotFound)
	}
	c.printf("Found document with account_number: %s\n", accountNumber)
	return orders[0], nil
}

// ReplaceDocument marks the order as shipped now. Only the shipped date of
// the stored document changes.
func (c *Core) ReplaceDocument(ctx context.Context, order *entity.SalesOrder) (*entity.SalesOrder, error) {
	c.printf("\n1.5 - Replacing a document using its Id\n")

	shipped := c.now().UTC().Format(entity.DateLayout)
	if shipped == order.ShippedDate {
		// clock did not move since the last write
		shipped = c.now().UTC().Add(1).Format(entity.DateLayout)
	}

	result, resp, err := c.replace(ctx, order, docdb.Document{entity.FieldShippedDate: shipped}, nil)
	if err != nil {
		return nil, err
	}
	c.printf("Request charge of replace operation: %v\n", resp.RequestCharge)
	c.printf("Shipped date of updated document: %s\n", result.ShippedDate)
	return result, nil
}

// replace writes the stored form of the order back with changes applied.
func (c *Core) replace(ctx context.Context, order *entity.SalesOrder, changes docdb.Document, opts *docdb.RequestOptions) (*entity.SalesOrder, *docdb.ItemResponse, error) {
	doc, err := order.Patch(changes)
	if err != nil {
		return nil, nil, err
	}
	pk, ok := doc.PartitionKeyValue(c.conf.PartitionKey)
	if !ok {
		return nil, nil, fmt.Errorf("order %s has no value at %s", order.ID, c.conf.PartitionKey)
	}
	if opts == nil {
		opts = &docdb.RequestOptions{}
	}
	opts.PartitionKey = pk

	resp, err := c.client.ReplaceDocument(ctx, c.coll.Doc(order.ID), doc, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("replace document %s: %w", order.ID, err)
	}
	result, err := entity.SalesOrderFromDocument(resp.Document)
	if err != nil {
		return nil, nil, err
	}
	return result, resp, nil
}

// UpsertDocument creates the order or replaces the stored one.
func (c *Core) UpsertDocument(ctx context.Context, order *entity.SalesOrder) (*entity.SalesOrder, error) {
	c.printf("\n1.6 - Upserting a document\n")

	if err := validate.Struct(order); err != nil {
		return nil, fmt.Errorf("order %s: %w", order.ID, err)
	}
	doc, err := order.Document()
	if err != nil {
		return nil, err
	}
	resp, err := c.client.UpsertDocument(ctx, c.coll, doc, nil)
	if err != nil {
		return nil, fmt.Errorf("upsert document %s: %w", order.ID, err)
	}
	result, err := entity.SalesOrderFromDocument(resp.Document)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusCreated {
		c.printf("Upserted document with id '%s' was created\n", result.ID)
	} else {
		c.printf("Upserted document with id '%s' was replaced\n", result.ID)
	}
	c.printf("Request charge of upsert operation: %v\n", resp.RequestCharge)
	return result, nil
}

func (c *Core) DeleteDocument(ctx context.Context, id, accountNumber string) error {
	c.printf("\n1.7 - Deleting a document\n")

	resp, err := c.client.DeleteDocument(ctx, c.coll.Doc(id), &docdb.RequestOptions{PartitionKey: accountNumber})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	c.printf("Deleted document with id '%s'\n", id)
	c.printf("Request charge of delete operation: %v\n", resp.RequestCharge)
	return nil
}
