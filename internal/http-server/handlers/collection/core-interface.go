package collection

import (
	"context"

	"docsample/internal/docdb"
)

type Core interface {
	CreateCollection(ctx context.Context, database string, def docdb.CollectionDefinition) (*docdb.Response, error)
}
