package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/supplyengine/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("engine command failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "engine",
		Usage: "Query and operate the supply decision engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Usage:   "Ledger source: file or postgres",
				EnvVars: []string{"SNAPSHOT_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "snapshot",
				Usage:   "YAML snapshot read when the source is file",
				EnvVars: []string{"SNAPSHOT_PATH"},
			},
			&cli.StringSliceFlag{
				Name:  "baseline",
				Usage: "Known consumption baseline as location|item=units_per_hour (repeatable)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			logger.UseJSON(c.App.ErrWriter)
			return nil
		},
		Commands: []*cli.Command{
			positionsCommand(),
			spikesCommand(),
			consumeCommand(),
			emergencyCommand(),
			vendorsCommand(),
			breakevenCommand(),
			transfersCommand(),
			routeCommand(),
			policyCommand(),
			reportCommand(),
			seedCommand(),
		},
	}
}
