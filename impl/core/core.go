package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"docsample/entity"
	"docsample/internal/config"
	"docsample/internal/docdb"
	"docsample/internal/lib/sl"
)

var ErrOrderNotFound = errors.New("order not found")

// Settings name the resources the sample works on.
type Settings struct {
	DatabaseID   string
	CollectionID string
	PartitionKey string
	PageSize     int
}

func SettingsFromConfig(conf *config.Config) Settings {
	return Settings{
		DatabaseID:   conf.Sample.DatabaseId,
		CollectionID: conf.Sample.CollectionId,
		PartitionKey: conf.Sample.PartitionKey,
		PageSize:     conf.Sample.PageSize,
	}
}

type Core struct {
	client docdb.Client
	conf   Settings
	coll   docdb.CollectionLink
	out    io.Writer
	now    func() time.Time
	log    *slog.Logger
}

func New(log *slog.Logger, conf Settings, out io.Writer) *Core {
	if conf.PageSize <= 0 {
		conf.PageSize = 10
	}
	return &Core{
		conf: conf,
		coll: docdb.CollectionLink{Database: conf.DatabaseID, Collection: conf.CollectionID},
		out:  out,
		now:  time.Now,
		log:  log.With(sl.Module("core")),
	}
}

func (c *Core) SetClient(client docdb.Client) {
	c.client = client
}

// SetClock replaces the time source used for shipped dates.
func (c *Core) SetClock(now func() time.Time) {
	c.now = now
}

// Run executes the sample steps in order and stops at the first failure.
func (c *Core) Run(ctx context.Context) error {
	defer c.printf("\nrun done\n")

	if c.client == nil {
		return fmt.Errorf("client not set")
	}

	err := c.run(ctx)
	if err != nil {
		c.log.Error("run has caught an error",
			slog.Int("status", docdb.StatusOf(err)),
			sl.Err(err),
		)
		c.printf("\nrun has caught an error. %v\n", err)
	}
	return err
}

func (c *Core) run(ctx context.Context) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	if err := c.CreateDocuments(ctx); err != nil {
		return err
	}
	if _, err := c.ReadDocument(ctx, "SalesOrder1", "Account1"); err != nil {
		return err
	}
	if _, err := c.ReadDocuments(ctx); err != nil {
		return err
	}
	order, err := c.QueryDocuments(ctx, "Account1")
	if err != nil {
		return err
	}
	order, err = c.ReplaceDocument(ctx, order)
	if err != nil {
		return err
	}

	if _, err = c.UpsertDocument(ctx, entity.NewSalesOrder(upsertOrderID)); err != nil {
		return err
	}
	if _, err = c.ReplaceDocumentWithConditions(ctx, order); err != nil {
		return err
	}
	if err = c.ReadDocumentWithConditions(ctx, order.ID, order.AccountNumber); err != nil {
		return err
	}
	return c.DeleteDocument(ctx, upsertOrderID, "Account1")
}

func (c *Core) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
