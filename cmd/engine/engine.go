package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/supplyengine/internal/bootstrap"
	"github.com/andresuchdata/supplyengine/internal/config"
	"github.com/andresuchdata/supplyengine/internal/domain"
)

// withEngine builds the engine from config and the global flags, runs fn and
// closes it. With the file source every invocation starts from the snapshot.
func withEngine(fn func(c *cli.Context, e *bootstrap.Engine) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := loadConfig(c)
		baselines, err := parseBaselines(c.StringSlice("baseline"))
		if err != nil {
			return err
		}

		e, err := bootstrap.Build(c.Context, cfg, nil, bootstrap.WithBaselines(baselines))
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(c, e)
	}
}

func loadConfig(c *cli.Context) *config.Config {
	cfg := *config.Load()
	if v := c.String("source"); v != "" {
		cfg.Snapshot.Source = v
	}
	if v := c.String("snapshot"); v != "" {
		cfg.Snapshot.Path = v
	}
	return &cfg
}

// parseBaselines reads location|item=rate pairs.
func parseBaselines(raw []string) (map[domain.PairKey]float64, error) {
	out := make(map[domain.PairKey]float64, len(raw))
	for _, entry := range raw {
		pair, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("baseline %q: want location|item=rate", entry)
		}
		key, ok := domain.ParsePairKey(strings.TrimSpace(pair))
		if !ok {
			return nil, fmt.Errorf("baseline %q: want location|item=rate", entry)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || rate < 0 {
			return nil, fmt.Errorf("baseline %q: rate must be a non-negative number", entry)
		}
		out[key] = rate
	}
	return out, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
