package core

import (
	"context"
	"fmt"
	"log/slog"

	"docsample/entity"
	"docsample/internal/docdb"
	"docsample/internal/lib/sl"
	"docsample/internal/lib/validate"
)

func (c *Core) collectionDefinition() docdb.CollectionDefinition {
	return docdb.CollectionDefinition{
		ID: c.conf.CollectionID,
		PartitionKey: &docdb.PartitionKey{
			Paths: []string{c.conf.PartitionKey},
			Kind:  docdb.PartitionKindHash,
		},
		IndexingPolicy: &docdb.IndexingPolicy{
			IncludedPaths: []docdb.IncludedPath{
				{
					Path: "/*",
					Indexes: []docdb.Index{
						{Kind: docdb.IndexKindRange, DataType: docdb.DataTypeNumber},
					},
				},
			},
		},
	}
}

// Initialize makes sure the database and the collection exist. An existing
// resource is not an error.
func (c *Core) Initialize(ctx context.Context) error {
	c.printf("Initializing database for samples\n")

	resp, err := c.client.CreateDatabase(ctx, c.conf.DatabaseID)
	switch {
	case err == nil:
		c.printf("Database with id '%s' created\n", c.conf.DatabaseID)
		c.log.Debug("database created", slog.String("id", c.conf.DatabaseID), sl.Charge(resp.RequestCharge))
	case docdb.IsConflict(err):
	default:
		return fmt.Errorf("create database %s: %w", c.conf.DatabaseID, err)
	}

	resp, err = c.client.CreateCollection(ctx, c.conf.DatabaseID, c.collectionDefinition())
	switch {
	case err == nil:
		c.printf("Collection with id '%s' created\n", c.conf.CollectionID)
		c.log.Debug("collection created", slog.String("id", c.conf.CollectionID), sl.Charge(resp.RequestCharge))
	case docdb.IsConflict(err):
		c.printf("Collection with id '%s' was found\n", c.conf.CollectionID)
	default:
		return fmt.Errorf("create collection %s: %w", c.conf.CollectionID, err)
	}
	return nil
}

// CreateDocuments stores one order of each schema version. Orders left over
// from a previous run are skipped.
func (c *Core) CreateDocuments(ctx context.Context) error {
	c.printf("\n1.1 - Creating Documents\n")

	for _, order := range []*entity.SalesOrder{
		entity.NewSalesOrder("SalesOrder1"),
		entity.NewSalesOrderV2("SalesOrder2"),
	} {
		if err := validate.Struct(order); err != nil {
			return fmt.Errorf("order %s: %w", order.ID, err)
		}
		doc, err := order.Document()
		if err != nil {
			return err
		}
		resp, err := c.client.CreateDocument(ctx, c.coll, doc, nil)
		if docdb.IsConflict(err) {
			c.printf("Document with id '%s' already exists\n", order.ID)
			continue
		}
		if err != nil {
			return fmt.Errorf("create document %s: %w", order.ID, err)
		}
		c.printf("Document with id '%s' created\n", order.ID)
		c.log.Debug("document created", slog.String("id", order.ID), sl.Charge(resp.RequestCharge))
	}
	return nil
}
