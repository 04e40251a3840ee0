package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/supplyengine/internal/repository/postgres"
	"github.com/andresuchdata/supplyengine/internal/snapshot"
)

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load a YAML snapshot into postgres, creating the schema if missing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Usage:    "Database connection string",
				Required: true,
				EnvVars:  []string{"DATABASE_URL"},
			},
		},
		Action: runSeed,
	}
}

func runSeed(c *cli.Context) error {
	path := loadConfig(c).Snapshot.Path
	snap, err := snapshot.Load(path)
	if err != nil {
		return err
	}

	conn, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()
	if err := conn.PingContext(c.Context); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db := postgres.Wrap(sqlx.NewDb(conn, "pgx"))
	if err := db.Migrate(c.Context); err != nil {
		return err
	}
	if err := db.Seed(c.Context, snap); err != nil {
		return fmt.Errorf("failed to seed snapshot: %w", err)
	}

	log.Info().Str("snapshot", path).Msg("seed complete")
	return printJSON(c, map[string]any{
		"snapshot":  path,
		"items":     len(snap.Items),
		"locations": len(snap.Locations),
		"records":   len(snap.Records),
	})
}
