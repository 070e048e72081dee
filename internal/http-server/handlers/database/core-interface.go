package database

import (
	"context"

	"docsample/internal/docdb"
)

type Core interface {
	CreateDatabase(ctx context.Context, id string) (*docdb.Response, error)
}
