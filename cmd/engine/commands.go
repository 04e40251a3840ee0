package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/supplyengine/internal/bootstrap"
	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/report"
	"github.com/andresuchdata/supplyengine/internal/repository/memory"
	"github.com/andresuchdata/supplyengine/internal/service"
	"github.com/andresuchdata/supplyengine/internal/storage"
)

func positionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "positions",
		Usage: "List inventory positions, highest risk first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "location", Usage: "Only this location"},
			&cli.StringFlag{Name: "item", Usage: "Only this item"},
			&cli.StringFlag{Name: "status", Usage: "Only this status code (e.g. CRITICAL)"},
		},
		Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
			positions, err := e.Service.Positions(c.Context, service.PositionFilter{
				LocationID: c.String("location"),
				ItemID:     c.String("item"),
				Status:     domain.StatusCode(strings.ToUpper(c.String("status"))),
			})
			if err != nil {
				return err
			}
			return printJSON(c, positions)
		}),
	}
}

func spikesCommand() *cli.Command {
	return &cli.Command{
		Name:  "spikes",
		Usage: "Run one spike detection pass against the ledger",
		Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
			res, err := e.Service.DetectSpikes(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c, res)
		}),
	}
}

func consumeCommand() *cli.Command {
	return &cli.Command{
		Name:  "consume",
		Usage: "Record simulated sales at a pair, then run a spike pass",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "location", Required: true},
			&cli.StringFlag{Name: "item", Required: true},
			&cli.Float64Flag{Name: "quantity", Required: true, Usage: "Units sold, drawn FEFO"},
			&cli.Float64Flag{Name: "rate", Usage: "Current sales rate in units per hour"},
		},
		Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
			store, ok := e.Ledger.(*memory.Store)
			if !ok {
				return fmt.Errorf("consume needs the file snapshot source")
			}
			key := domain.PairKey{LocationID: c.String("location"), ItemID: c.String("item")}
			if c.IsSet("rate") {
				if c.Float64("rate") < 0 {
					return domain.NewDomainError("rate", "must be >= 0, got %.2f", c.Float64("rate"))
				}
				store.SetRate(key, c.Float64("rate"))
			}
			rec, err := store.Consume(c.Context, key, c.Float64("quantity"))
			if err != nil {
				return err
			}
			res, err := e.Service.DetectSpikes(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c, map[string]any{"record": rec, "pass": res})
		}),
	}
}

func emergencyCommand() *cli.Command {
	return &cli.Command{
		Name:  "emergency",
		Usage: "Detect spikes and rank response options for one pair",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "location", Required: true},
			&cli.StringFlag{Name: "item", Required: true},
			&cli.Float64Flag{Name: "quantity", Usage: "Units needed; 0 covers the configured window"},
			&cli.StringFlag{Name: "accept", Usage: "Commit the option of this kind (recommended when 'best')"},
			&cli.StringFlag{Name: "provider", Usage: "Provider of the accepted option"},
		},
		Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
			res, err := e.Service.DetectSpikes(c.Context)
			if err != nil {
				return err
			}
			key := domain.PairKey{LocationID: c.String("location"), ItemID: c.String("item")}
			var sig *domain.SpikeSignal
			for i := range res.Active {
				if res.Active[i].Key() == key {
					sig = &res.Active[i]
					break
				}
			}
			if sig == nil {
				return fmt.Errorf("no active spike at %s; seed a baseline with --baseline", key)
			}

			if accept := c.String("accept"); accept != "" {
				choice := service.OptionChoice{Provider: c.String("provider"), Quantity: c.Float64("quantity")}
				if !strings.EqualFold(accept, "best") {
					choice.Kind = domain.OptionKind(strings.ToUpper(accept))
				}
				acc, err := e.Service.AcceptEmergencyOption(c.Context, sig.ID, choice)
				if err != nil {
					return err
				}
				return printJSON(c, acc)
			}

			signal, options, err := e.Service.EmergencyOptions(c.Context, sig.ID, c.Float64("quantity"))
			if err != nil {
				return err
			}
			return printJSON(c, map[string]any{"signal": signal, "options": options})
		}),
	}
}

func vendorsCommand() *cli.Command {
	itemFlags := func(extra ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			&cli.StringFlag{Name: "item", Required: true},
			&cli.Float64Flag{Name: "quantity", Required: true},
		}, extra...)
	}
	return &cli.Command{
		Name:  "vendors",
		Usage: "Compare suppliers of an item",
		Subcommands: []*cli.Command{
			{
				Name:  "landed",
				Usage: "Landed cost of every supplier at a quantity",
				Flags: itemFlags(),
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					quotes, err := e.Service.LandedCost(c.Context, c.String("item"), c.Float64("quantity"))
					if err != nil {
						return err
					}
					return printJSON(c, quotes)
				}),
			},
			{
				Name:  "choose",
				Usage: "Pick a supplier for an urgency",
				Flags: itemFlags(&cli.StringFlag{Name: "urgency", Value: "standard"}),
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					urgency, ok := domain.ParseUrgency(c.String("urgency"))
					if !ok {
						return domain.NewDomainError("urgency", "unknown urgency %q", c.String("urgency"))
					}
					choice, err := e.Service.ChooseVendor(c.Context, c.String("item"), c.Float64("quantity"), urgency)
					if err != nil {
						return err
					}
					return printJSON(c, choice)
				}),
			},
		},
	}
}

func breakevenCommand() *cli.Command {
	return &cli.Command{
		Name:  "breakeven",
		Usage: "Smallest order reaching a supplier's next price break",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "supplier", Required: true},
			&cli.StringFlag{Name: "item", Required: true},
			&cli.Float64Flag{Name: "quantity", Required: true},
			&cli.StringFlag{Name: "location", Usage: "Usage at this location; all locations when empty"},
		},
		Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
			be, err := e.Service.Breakeven(c.Context, service.BreakevenRequest{
				SupplierID: c.String("supplier"),
				ItemID:     c.String("item"),
				Quantity:   c.Float64("quantity"),
				LocationID: c.String("location"),
			})
			if err != nil {
				return err
			}
			return printJSON(c, be)
		}),
	}
}

func transfersCommand() *cli.Command {
	idAction := func(op func(c *cli.Context, e *bootstrap.Engine, id string) (domain.Transfer, error)) cli.ActionFunc {
		return withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
			id := c.Args().First()
			if id == "" {
				return fmt.Errorf("transfer id is required")
			}
			t, err := op(c, e, id)
			if err != nil {
				return err
			}
			return printJSON(c, t)
		})
	}

	return &cli.Command{
		Name:  "transfers",
		Usage: "Suggest, approve and track stock transfers",
		Subcommands: []*cli.Command{
			{
				Name:  "suggest",
				Usage: "Rebalancing suggestions for the current ledger",
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					suggestions, err := e.Service.TransferSuggestions(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c, suggestions)
				}),
			},
			{
				Name:  "list",
				Usage: "Every recorded transfer",
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					transfers, err := e.Service.Transfers(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c, transfers)
				}),
			},
			{
				Name:  "approve",
				Usage: "Approve the current suggestion for a source, target and item",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					&cli.StringFlag{Name: "item", Required: true},
				},
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					suggestions, err := e.Service.TransferSuggestions(c.Context)
					if err != nil {
						return err
					}
					for _, s := range suggestions {
						if s.FromLocationID == c.String("from") && s.ToLocationID == c.String("to") && s.ItemID == c.String("item") {
							t, err := e.Service.ApproveTransfer(c.Context, s)
							if err != nil {
								return err
							}
							return printJSON(c, t)
						}
					}
					return domain.NewNotFound("transfer_suggestion", c.String("from")+"->"+c.String("to")+"/"+c.String("item"))
				}),
			},
			{
				Name:      "complete",
				Usage:     "Receive an in-transit transfer",
				ArgsUsage: "<id>",
				Action: idAction(func(c *cli.Context, e *bootstrap.Engine, id string) (domain.Transfer, error) {
					return e.Service.CompleteTransfer(c.Context, id)
				}),
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a transfer, returning dispatched stock",
				ArgsUsage: "<id>",
				Action: idAction(func(c *cli.Context, e *bootstrap.Engine, id string) (domain.Transfer, error) {
					return e.Service.CancelTransfer(c.Context, id)
				}),
			},
		},
	}
}

func routeCommand() *cli.Command {
	return &cli.Command{
		Name:  "route",
		Usage: "Cheapest active route between two locations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true},
			&cli.StringFlag{Name: "to", Required: true},
		},
		Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
			path, err := e.Service.BestRoute(c.Context, c.String("from"), c.String("to"))
			if err != nil {
				return err
			}
			return printJSON(c, path)
		}),
	}
}

func draftFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: "service-level"},
		&cli.Float64Flag{Name: "buffer-pct"},
		&cli.Float64Flag{Name: "holding-rate"},
		&cli.Float64Flag{Name: "auto-transfer"},
	}
}

// draftFrom overrides the applied profile with the flags that were set.
func draftFrom(c *cli.Context, current domain.PolicyProfile) domain.PolicyProfile {
	draft := current.Clone()
	if c.IsSet("service-level") {
		draft = draft.WithServiceLevel(c.Float64("service-level"))
	}
	if c.IsSet("buffer-pct") {
		draft = draft.WithBufferPct(c.Float64("buffer-pct"))
	}
	if c.IsSet("holding-rate") {
		draft = draft.WithHoldingCostRate(c.Float64("holding-rate"))
	}
	if c.IsSet("auto-transfer") {
		draft = draft.WithAutoTransferThreshold(c.Float64("auto-transfer"))
	}
	return draft
}

func policyCommand() *cli.Command {
	return &cli.Command{
		Name:  "policy",
		Usage: "Inspect and simulate the service-level policy",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "The applied profile",
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					return printJSON(c, e.Service.Policy())
				}),
			},
			{
				Name:  "simulate",
				Usage: "Impact of a draft against the applied profile",
				Flags: draftFlags(),
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					impact, err := e.Service.SimulatePolicy(c.Context, draftFrom(c, e.Service.Policy().Profile))
					if err != nil {
						return err
					}
					return printJSON(c, impact)
				}),
			},
			{
				Name:  "curve",
				Usage: "Capital and risk across service levels",
				Flags: append(draftFlags(), &cli.Float64SliceFlag{Name: "grid", Usage: "Service levels to sample"}),
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					points, err := e.Service.PolicyCurve(c.Context, draftFrom(c, e.Service.Policy().Profile), c.Float64Slice("grid"))
					if err != nil {
						return err
					}
					return printJSON(c, points)
				}),
			},
			{
				Name:  "apply",
				Usage: "Apply a draft on top of a policy version",
				Flags: append(draftFlags(), &cli.Int64Flag{Name: "based-on", Required: true}),
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					applied, err := e.Service.ApplyPolicy(c.Context, draftFrom(c, e.Service.Policy().Profile), c.Int64("based-on"))
					if err != nil {
						return err
					}
					return printJSON(c, applied)
				}),
			},
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Export CSV reports",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Upload positions, policy curve and transfer suggestions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "./reports", Usage: "Directory used when object storage is disabled"},
				},
				Action: withEngine(func(c *cli.Context, e *bootstrap.Engine) error {
					cfg := loadConfig(c)
					store, err := storage.New(cfg.Storage, c.String("out"))
					if err != nil {
						return err
					}
					bundle, err := e.Service.ReportBundle(c.Context)
					if err != nil {
						return err
					}
					keys, err := report.NewExporter(store, cfg.Storage.Prefix).Export(c.Context, bundle)
					if err != nil {
						return err
					}
					return printJSON(c, map[string]any{"objects": keys})
				}),
			},
		},
	}
}
