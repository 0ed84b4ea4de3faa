package db

import (
	"context"

	"github.com/uptrace/bun"

	"ticketdesk/internal/models"
)

// CreateSchema creates the local tables if they are missing. The SQLite file
// is the system of record; the Postgres replica has its own migration set.
func CreateSchema(ctx context.Context, bunDB *bun.DB) error {
	tables := []interface{}{(*models.Ticket)(nil), (*models.User)(nil)}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
