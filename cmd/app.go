package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/NgigiN/charity-ledger/internal/config"
	"github.com/NgigiN/charity-ledger/internal/donations"
	"github.com/NgigiN/charity-ledger/internal/ledger"
	"github.com/NgigiN/charity-ledger/internal/logging"
	"github.com/NgigiN/charity-ledger/internal/metrics"
	"github.com/NgigiN/charity-ledger/internal/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// app carries what every command needs. It is built in Before.
type app struct {
	out    io.Writer
	errOut io.Writer
	cfg    *config.Config
	logger zerolog.Logger
}

func newApp(out, errOut io.Writer) *cli.App {
	a := &app{out: out, errOut: errOut}
	return &cli.App{
		Name:      "charity-ledger",
		Usage:     "Tamper-evident ledger of charity donations",
		Version:   fmt.Sprintf("%s (commit: %s)", version, commit),
		Writer:    out,
		ErrWriter: errOut,
		Description: `Every donation is appended to a hash chain: each record commits to the
previous record's hash, so edits, deletions and reordering show up in verify.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Ledger storage backend (json, sqlite)",
				EnvVars: []string{"LEDGER_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "ledger-path",
				Aliases: []string{"f"},
				Usage:   "Path of the JSON ledger file",
				EnvVars: []string{"LEDGER_PATH"},
			},
			&cli.StringFlag{
				Name:    "sqlite-path",
				Usage:   "Path of the sqlite ledger database",
				EnvVars: []string{"LEDGER_SQLITE_PATH"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional .env file to load before reading configuration",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			a.addCommand(),
			a.importCommand(),
			a.verifyCommand(),
			a.showCommand(),
			a.summaryCommand(),
			a.queryCommand(),
			a.botCommand(),
		},
	}
}

func (a *app) setup(c *cli.Context) error {
	if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", c.String("env-file"), err)
	}

	// Flags fall back to the same environment variables config.Read reads,
	// so only non-empty values override. Validation runs after overrides.
	cfg := config.Read()
	if v := c.String("backend"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := c.String("ledger-path"); v != "" {
		cfg.LedgerPath = v
	}
	if v := c.String("sqlite-path"); v != "" {
		cfg.SQLitePath = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.logger = logging.New(a.errOut, cfg.AppEnv, cfg.LogLevel)
	return nil
}

// openStore returns the configured store and a function releasing it.
func (a *app) openStore() (ledger.Store, func(), error) {
	switch a.cfg.Backend {
	case config.BackendSQLite:
		db, err := storage.NewDatabase(a.cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("failed to close database")
			}
		}, nil
	default:
		return ledger.NewJSONFile(a.cfg.LedgerPath), func() {}, nil
	}
}

func (a *app) openService(reg prometheus.Registerer) (*donations.Service, func(), error) {
	store, closer, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	svc, err := donations.Open(store, a.cfg.Backend, metrics.NewMetrics(reg), a.logger)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return svc, closer, nil
}
