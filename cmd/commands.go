package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/NgigiN/charity-ledger/internal/discord"
	"github.com/NgigiN/charity-ledger/internal/intake"
	"github.com/NgigiN/charity-ledger/internal/ledger"
	"github.com/itchyny/gojq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
)

func (a *app) addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Record a single donation",
		ArgsUsage: "<donor> <type> <amount>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("requires exactly three arguments: donor, type and amount")
			}
			d, err := intake.Validate(c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
			if err != nil {
				return err
			}

			svc, closer, err := a.openService(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer closer()

			r := svc.Record(d)
			if err := svc.Persist(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, pterm.Success.Sprintf("Donation recorded as #%d (%s)", r.Index, r.Hash))
			return nil
		},
	}
}

func (a *app) importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Record donations from a CSV file of donor,type,amount rows",
		ArgsUsage: "<file|->",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: a CSV file or - for stdin")
			}

			var in io.Reader = c.App.Reader
			name := "stdin"
			if path := c.Args().First(); path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				defer f.Close()
				in, name = f, path
			}

			svc, closer, err := a.openService(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer closer()

			res, importErr := svc.Import(intake.NewCSVSource(in), name)
			if len(res.Recorded) > 0 {
				if err := svc.Persist(); err != nil {
					return err
				}
			}
			for _, err := range res.Rejected {
				fmt.Fprintln(a.out, pterm.Warning.Sprintf("skipped: %v", err))
			}
			fmt.Fprintln(a.out, pterm.Info.Sprintf("Recorded %d donations, skipped %d", len(res.Recorded), len(res.Rejected)))
			return importErr
		},
	}
}

func (a *app) verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check every record's linkage and hash",
		Action: func(c *cli.Context) error {
			svc, closer, err := a.openService(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer closer()

			report := svc.Verify()
			if !report.Valid {
				fmt.Fprintln(a.out, pterm.Error.Sprintf("Chain broken at record %d: %s", report.FailedIndex, report.Reason))
				return report.Err()
			}
			fmt.Fprintln(a.out, pterm.Success.Sprintf("All %d records are valid and connected.", svc.Ledger().Len()))
			return nil
		},
	}
}

func (a *app) showCommand() *cli.Command {
	return &cli.Command{
		Name:    "show",
		Usage:   "Print the ledger",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Only show the last n records (0 shows all)",
			},
		},
		Action: func(c *cli.Context) error {
			svc, closer, err := a.openService(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer closer()

			records := svc.Ledger().Records()
			if n := c.Int("limit"); n > 0 && n < len(records) {
				records = records[len(records)-n:]
			}

			if c.Bool("json") {
				data, err := ledger.EncodeRecords(records)
				if err != nil {
					return err
				}
				_, err = a.out.Write(data)
				return err
			}

			data := pterm.TableData{{"#", "TIMESTAMP", "DONOR", "TYPE", "AMOUNT", "PREVIOUS HASH", "HASH"}}
			for _, r := range records {
				data = append(data, []string{
					strconv.Itoa(r.Index),
					r.Timestamp,
					r.Donor,
					r.Category,
					fmt.Sprintf("%.2f", r.Amount),
					r.PreviousHash,
					r.Hash,
				})
			}
			return renderTable(a.out, data)
		},
	}
}

func (a *app) summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Total donations per type",
		Action: func(c *cli.Context) error {
			svc, closer, err := a.openService(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer closer()

			summary := svc.Summary()
			if len(summary) == 0 {
				fmt.Fprintln(a.out, pterm.Info.Sprint("No donations recorded."))
				return nil
			}

			var total float64
			data := pterm.TableData{{"TYPE", "DONATIONS", "AMOUNT"}}
			for _, row := range summary {
				data = append(data, []string{row.Category, strconv.Itoa(row.Count), fmt.Sprintf("%.2f", row.Amount)})
				total += row.Amount
			}
			data = append(data, []string{"Total", "", fmt.Sprintf("%.2f", total)})
			return renderTable(a.out, data)
		},
	}
}

func (a *app) queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Run a jq filter over the stored record objects",
		ArgsUsage: "<filter>",
		Description: `The filter receives the ledger as an array of objects with the stored field
names, for example: charity-ledger query '.[] | select(.Type == "Zakat") | .Amount'`,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: jq filter")
			}
			code, err := compileFilter(c.Args().First())
			if err != nil {
				return err
			}

			store, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer()

			l, err := ledger.Load(store)
			if err != nil {
				return err
			}
			return runFilter(a.out, code, l.Records())
		},
	}
}

func (a *app) botCommand() *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "Record donations posted in a Discord channel",
		Action: func(c *cli.Context) error {
			if err := a.cfg.ValidateBot(); err != nil {
				return err
			}
			svc, closer, err := a.openService(nil)
			if err != nil {
				return err
			}
			defer closer()

			bot, err := discord.NewBot(a.cfg, svc, a.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize the discord bot: %w", err)
			}
			if err := bot.Start(); err != nil {
				return fmt.Errorf("failed to start bot: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			bot.Stop()
			a.logger.Info().Msg("bot stopped")
			return nil
		},
	}
}

func compileFilter(filter string) (*gojq.Code, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}

// runFilter feeds the records to code in their stored JSON shape and prints
// one JSON value per result.
func runFilter(w io.Writer, code *gojq.Code, records []ledger.Record) error {
	data, err := ledger.EncodeRecords(records)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				return nil
			}
			return fmt.Errorf("jq: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
	}
}

func renderTable(w io.Writer, data pterm.TableData) error {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}
