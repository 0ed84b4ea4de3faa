// Command replicate copies the local SQLite ticket store into a Postgres
// disaster-recovery replica. Already-replicated ticket numbers are skipped,
// so the run is safe to repeat on a schedule.
package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	_ "github.com/lib/pq"

	"ticketdesk/internal/config"
	"ticketdesk/internal/database/migrations"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/models"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", "No .env file found, using environment variables")
	}
	cfg := config.Load()

	if cfg.Database.ReplicaDSN == "" {
		log.Fatal("REPLICATE", "REPLICA_DSN is not set")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("REPLICATE", err.Error())
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	source, err := openSQLite(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening sqlite source: %w", err)
	}
	defer source.Close()

	target, err := openPostgres(cfg.Database.ReplicaDSN)
	if err != nil {
		return fmt.Errorf("opening postgres replica: %w", err)
	}
	defer target.Close()

	runner := migrations.NewRunner(target, cfg.Database.MigrationsDir)
	if err := runner.Up(); err != nil {
		return err
	}
	defer runner.Close()

	copied, skipped, err := replicate(context.Background(), source, target)
	if err != nil {
		return err
	}

	log.Info("REPLICATE", fmt.Sprintf("Replication complete: %d copied, %d already present", copied, skipped))
	return nil
}

func openSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func openPostgres(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := sqldb.Ping(); err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// replicate inserts every source ticket into the target, letting the unique
// ticket_number constraint drop rows the replica already holds. Replica ids
// are assigned by the target sequence, not carried over.
func replicate(ctx context.Context, source, target *bun.DB) (copied, skipped int, err error) {
	var tickets []models.Ticket
	if err := source.NewSelect().Model(&tickets).Order("id").Scan(ctx); err != nil {
		return 0, 0, fmt.Errorf("reading source tickets: %w", err)
	}

	for i := range tickets {
		res, err := target.NewInsert().
			Model(&tickets[i]).
			ExcludeColumn("id").
			On("CONFLICT (ticket_number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return copied, skipped, fmt.Errorf("inserting ticket %s: %w", tickets[i].TicketNumber, err)
		}
		rows, _ := res.RowsAffected()
		if rows > 0 {
			copied++
		} else {
			skipped++
		}
	}

	return copied, skipped, nil
}
