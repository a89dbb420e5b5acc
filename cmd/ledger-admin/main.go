// Command ledger-admin inspects and maintains the monthly ledger tabs without
// going through the chat bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"expensebot/internal/backend"
	"expensebot/internal/cli"
	"expensebot/internal/config"
	"expensebot/internal/core"
	"expensebot/internal/ledger"
	"expensebot/internal/log"
)

const usage = `Usage: ledger-admin <command> [flags]

Commands:
  list                         list monthly ledger tabs
  init    [-ledger NAME]       create the tab if missing and repair its layout
  detect  [-ledger NAME]       print the tab layout (old, new, unknown)
  migrate [-ledger NAME] [-discard]
                               convert an old-layout tab to the current layout
  reset   [-ledger NAME] [-target AMOUNT] -yes
                               wipe the tab and rewrite an empty layout
  total   [-ledger NAME] [-all]
                               print the summed expenses

NAME defaults to the current month, e.g. "Mar 2025".
`

var errUsage = errors.New("usage")

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.ValidateLedger(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentStorage)).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err)
		os.Exit(1)
	}

	m := ledger.NewManager(res.Backend,
		ledger.WithLogger(logger.WithComponent(log.ComponentLedger)),
		ledger.WithDefaultTarget(cfg.Target()))

	err = run(ctx, m, time.Now(), os.Args[1:], os.Stdout)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	case err != nil:
		logger.Error("Command failed", log.FieldCommand, os.Args[1], log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, m *ledger.Manager, now time.Time, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := strings.ToLower(args[0]), args[1:]
	current := ledger.MonthlyLedgerName(now)

	switch cmd {
	case "list":
		return cmdList(ctx, m, out)
	case "init":
		return cmdInit(ctx, m, current, args, out)
	case "detect":
		return cmdDetect(ctx, m, current, args, out)
	case "migrate":
		return cmdMigrate(ctx, m, current, args, out)
	case "reset":
		return cmdReset(ctx, m, current, args, out)
	case "total":
		return cmdTotal(ctx, m, current, args, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func cmdList(ctx context.Context, m *ledger.Manager, out io.Writer) error {
	names, err := m.Ledgers(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}

func cmdInit(ctx context.Context, m *ledger.Manager, current string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	name := fs.String("ledger", current, "tab name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	res, err := m.EnsureLedger(ctx, *name)
	if err != nil {
		return err
	}
	if m.DetectFormat(ctx, *name) == ledger.FormatOld {
		fmt.Fprintf(out, "%s uses the old layout; run migrate\n", *name)
		return nil
	}
	rep, err := m.Repair(ctx, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: created=%t repaired=%v\n", *name, res.Created, rep.Repaired)
	printWarnings(out, append(res.Warnings, rep.Warnings...))
	return nil
}

func cmdDetect(ctx context.Context, m *ledger.Manager, current string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	name := fs.String("ledger", current, "tab name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	ok, err := m.Exists(ctx, *name)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "%s: missing\n", *name)
		return nil
	}
	fmt.Fprintf(out, "%s: %s\n", *name, m.DetectFormat(ctx, *name))
	return nil
}

func cmdMigrate(ctx context.Context, m *ledger.Manager, current string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	name := fs.String("ledger", current, "tab name")
	discard := fs.Bool("discard", false, "drop existing rows instead of carrying them over")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	res, err := m.Migrate(ctx, *name, !*discard)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: from=%s migrated=%d skipped=%d\n", *name, res.From, res.RowsMigrated, res.RowsSkipped)
	printWarnings(out, res.Warnings)
	return nil
}

func cmdReset(ctx context.Context, m *ledger.Manager, current string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	name := fs.String("ledger", current, "tab name")
	targetStr := fs.String("target", "", "target expense (defaults to TARGET_EXPENSE)")
	yes := fs.Bool("yes", false, "confirm the wipe")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if !*yes {
		return fmt.Errorf("%w: reset deletes every row in %s, pass -yes to confirm", errUsage, *name)
	}
	target := m.DefaultTarget()
	if *targetStr != "" {
		t, err := core.ParseMoney(*targetStr)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", *targetStr, err)
		}
		target = t
	}
	res, err := m.Reset(ctx, *name, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s reset with target %s\n", *name, target)
	printWarnings(out, res.Warnings)
	return nil
}

func cmdTotal(ctx context.Context, m *ledger.Manager, current string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("total", flag.ContinueOnError)
	name := fs.String("ledger", current, "tab name")
	all := fs.Bool("all", false, "sum every monthly tab")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *all {
		total, err := m.TotalAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "all: %s\n", total)
		return nil
	}
	total, err := m.Total(ctx, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s\n", *name, total)
	return nil
}

func printWarnings(out io.Writer, warnings []error) {
	for _, w := range warnings {
		fmt.Fprintf(out, "warning: %v\n", w)
	}
}
