package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"review_harvester/internal/adapters/observability"
	"review_harvester/internal/shared"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFatal       = 1 // the run summary could not be written, or setup failed
	ExitConfigError = 2 // nothing to harvest
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type rootFlags struct {
	company     string
	companies   string
	outputDir   string
	summary     string
	store       string
	emptyPages  int
	maxPages    int
	pageDelay   string
	targetDelay string
	noRobots    bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:   "harvester [--company <name|domain|url> | --companies <file>]",
		Short: "harvester incrementally collects company reviews into append-only files.",
		Long: `harvester walks the review pages of each company in order and appends
every review it has not stored before. Re-running it only adds what is new.

Without --company or --companies it reads a "companies" file (one per line)
or a "company" file (first line) from the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFromFlags(cmd, flags)
			if err != nil {
				return &exitError{code: ExitConfigError, err: err}
			}
			return runHarvest(cmd.Context(), cmd.OutOrStdout(), cfg, flags.company, flags.companies)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.company, "company", "c", "", "single company name, domain or review URL")
	f.StringVarP(&flags.companies, "companies", "f", "", "file with one company per line")
	f.StringVarP(&flags.outputDir, "output-dir", "o", "", "directory for the per-company .jsonl files")
	f.StringVar(&flags.summary, "summary", "", "path of the run summary (default scraping_summary.json)")
	f.StringVar(&flags.store, "store", "", "review store backend: jsonl or mysql")
	f.IntVar(&flags.emptyPages, "empty-pages", 0, "consecutive empty pages that end a company (default 2)")
	f.IntVar(&flags.maxPages, "max-pages", 0, "stop each company after this many pages (0 = no cap)")
	f.StringVar(&flags.pageDelay, "page-delay", "", "delay between page fetches, e.g. 1s")
	f.StringVar(&flags.targetDelay, "target-delay", "", "delay between companies, e.g. 5s")
	f.BoolVar(&flags.noRobots, "ignore-robots", false, "do not consult robots.txt")

	cmd.AddCommand(newResolveCmd())
	return cmd
}

// configFromFlags layers explicitly set flags over file and environment.
func configFromFlags(cmd *cobra.Command, flags rootFlags) (shared.Config, error) {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	fs := cmd.Flags()
	if fs.Changed("output-dir") {
		cfg.OutputDir = flags.outputDir
	}
	if fs.Changed("summary") {
		cfg.SummaryPath = flags.summary
	}
	if fs.Changed("store") {
		cfg.StoreBackend = flags.store
	}
	if fs.Changed("empty-pages") {
		if flags.emptyPages < 1 {
			return cfg, fmt.Errorf("--empty-pages must be at least 1")
		}
		cfg.Harvest.EmptyPageThreshold = flags.emptyPages
	}
	if fs.Changed("max-pages") {
		cfg.Harvest.MaxPages = flags.maxPages
	}
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"page-delay", flags.pageDelay, &cfg.Harvest.PageDelay},
		{"target-delay", flags.targetDelay, &cfg.Harvest.TargetDelay},
	} {
		if !fs.Changed(d.name) {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil || v < 0 {
			return cfg, fmt.Errorf("--%s: invalid duration %q", d.name, d.raw)
		}
		*d.dst = v
	}
	if flags.noRobots {
		cfg.Fetch.RespectRobots = false
	}
	return cfg, nil
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(stderr, "error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// flag and argument errors from cobra
	return ExitConfigError
}
