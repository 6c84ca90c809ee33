// Command ledgerctl runs operator tasks against the ledger: schema bootstrap,
// ledger reports and manual job triggers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ledgercore/ledgercore/cmd/ledgerctl/cli"
	"github.com/ledgercore/ledgercore/internal/app"
	"github.com/ledgercore/ledgercore/internal/coordinator"
	"github.com/ledgercore/ledgercore/internal/masterdata"
	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/store"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  migrate                                  apply pending schema migrations
  integrity     -tenant ID [-json]         check posted entries
  trial-balance -tenant ID [-as-of DATE] [-json]
  jobs trigger  -job NAME [-tenant ID]     enqueue ledger:integrity or inventory:reorder-scan
  jobs inspect                             show default queue counters
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return cli.ExitError
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return cli.ExitError
	}

	switch args[0] {
	case "migrate":
		return withPool(ctx, cfg, stderr, func(pool *pgxpool.Pool) int {
			if err := db.Migrate(ctx, pool); err != nil {
				_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
				return cli.ExitError
			}
			version, dirty, err := db.SchemaVersion(pool)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
				return cli.ExitError
			}
			_, _ = fmt.Fprintf(stdout, "schema at version %d (dirty=%t)\n", version, dirty)
			return cli.ExitOK
		})
	case "integrity", "trial-balance":
		fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
		fs.SetOutput(stderr)
		opts := cli.LedgerOptions{Stdout: stdout, Stderr: stderr}
		fs.StringVar(&opts.TenantID, "tenant", "", "tenant id")
		fs.StringVar(&opts.AsOf, "as-of", "", "report date (YYYY-MM-DD)")
		fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return cli.ExitError
		}
		return withPool(ctx, cfg, stderr, func(pool *pgxpool.Pool) int {
			reports, err := cli.NewLedgerCLI(newCoordinator(cfg, pool))
			if err != nil {
				_, _ = fmt.Fprintln(stderr, err)
				return cli.ExitError
			}
			if args[0] == "integrity" {
				return reports.IntegrityCommand(ctx, opts)
			}
			return reports.TrialBalanceCommand(ctx, opts)
		})
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return cli.ExitError
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return cli.ExitError
	}
	jobsCLI := cli.NewJobsCLI(cfg.QueueOptions())
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs: close: %v\n", err)
		}
	}()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		name := fs.String("job", "", "task type")
		tenant := fs.String("tenant", "", "tenant id (all tenants when empty)")
		if err := fs.Parse(args[1:]); err != nil {
			return cli.ExitError
		}
		tenantID := uuid.Nil
		if *tenant != "" {
			id, err := uuid.Parse(*tenant)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "jobs trigger: invalid tenant %q\n", *tenant)
				return cli.ExitError
			}
			tenantID = id
		}
		info, err := jobsCLI.Trigger(ctx, *name, tenantID)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return cli.ExitError
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		return cli.ExitOK
	case "inspect":
		stats, err := jobsCLI.InspectQueue()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs inspect: %v\n", err)
			return cli.ExitError
		}
		_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return cli.ExitOK
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return cli.ExitError
	}
}

func withPool(ctx context.Context, cfg *app.Config, stderr io.Writer, fn func(*pgxpool.Pool) int) int {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "connect database: %v\n", err)
		return cli.ExitError
	}
	defer pool.Close()
	return fn(pool)
}

// newCoordinator reads master data straight from Postgres without the cache.
func newCoordinator(cfg *app.Config, pool *pgxpool.Pool) *coordinator.Coordinator {
	return coordinator.New(store.NewPostgresStore(pool, cfg.TxOptions()), masterdata.NewPostgresDirectory(pool), coordinator.Config{
		OperationTimeout:         cfg.OperationTimeout,
		DefaultTaxRate:           cfg.TaxRate(),
		AllowNegativeAdjustments: cfg.AllowNegativeAdjustments,
		PostCostOfSales:          cfg.PostCostOfSales,
	}, app.NewLogger(cfg), nil)
}
