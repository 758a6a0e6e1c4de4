// Command checkin runs one batch of reward check-ins over every configured
// account, prints the run report, and exits 0 only when no account failed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pysugar/relay-checkin/internal/browser"
	"github.com/pysugar/relay-checkin/internal/bypass"
	"github.com/pysugar/relay-checkin/internal/checkin"
	"github.com/pysugar/relay-checkin/internal/config"
	"github.com/pysugar/relay-checkin/internal/dispatch"
	"github.com/pysugar/relay-checkin/internal/httpx"
	"github.com/pysugar/relay-checkin/internal/logging"
	"github.com/pysugar/relay-checkin/internal/notify"
	"github.com/pysugar/relay-checkin/internal/provider"
	"github.com/pysugar/relay-checkin/internal/store"
	"github.com/pysugar/relay-checkin/internal/version"
)

type runOptions struct {
	concurrency   int
	dataDir       string
	storeBackend  string
	providersFile string
	timeout       time.Duration
	dryRun        bool
	noNotify      bool
}

func main() {
	log := logging.Setup()

	root := &cobra.Command{
		Use:           "checkin",
		Short:         "Multi-account relay check-in runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts := runOptions{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one check-in batch over all configured accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), log, opts)
		},
	}
	runCmd.Flags().IntVar(&opts.concurrency, "concurrency", checkin.DefaultConcurrency, "max accounts processed at once")
	runCmd.Flags().StringVar(&opts.dataDir, "data-dir", "data", "directory for history and hash files")
	runCmd.Flags().StringVar(&opts.storeBackend, "store", "", "storage backend: file or sqlite (default from CHECKIN_STORE)")
	runCmd.Flags().StringVar(&opts.providersFile, "providers-file", "providers.yaml", "provider catalog file")
	runCmd.Flags().DurationVar(&opts.timeout, "timeout", httpx.DefaultTimeout, "per-request HTTP timeout")
	runCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report eligibility without any signin attempt")
	runCmd.Flags().BoolVar(&opts.noNotify, "no-notify", false, "skip push notifications")

	reportOpts := runOptions{}
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Render last-known records without touching the network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderStored(log, reportOpts)
		},
	}
	reportCmd.Flags().StringVar(&reportOpts.dataDir, "data-dir", "data", "directory for history and hash files")
	reportCmd.Flags().StringVar(&reportOpts.storeBackend, "store", "", "storage backend: file or sqlite (default from CHECKIN_STORE)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("checkin %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildTime)
		},
	}

	root.AddCommand(runCmd, reportCmd, versionCmd)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runBatch(ctx context.Context, log zerolog.Logger, opts runOptions) error {
	accounts, err := config.LoadAccounts()
	if err != nil {
		return err
	}

	catalog, warnings := provider.Load(opts.providersFile)
	for _, w := range warnings {
		log.Warn().Err(w).Msg("provider catalog entry skipped")
	}

	history, hashes, err := openStores(opts)
	if err != nil {
		return err
	}

	if opts.dryRun {
		return dryRun(log, accounts, history)
	}

	cache := bypass.NewCache(bypassProvider(), log)
	dispatcher := dispatch.New(&http.Client{Timeout: opts.timeout}, cache, browserTrigger(), log)

	orchestrator := &checkin.Orchestrator{
		Accounts: accounts,
		Processor: &checkin.Processor{
			Catalog:  catalog,
			Executor: dispatcher,
			Log:      log,
		},
		History:     history,
		Hashes:      hashes,
		Bypass:      cache,
		Concurrency: opts.concurrency,
		Log:         log,
	}

	summary, runErr := orchestrator.Run(ctx)
	report := checkin.Render(summary)
	fmt.Print(report)

	if !opts.noNotify && summary.NeedsNotification() {
		notifier := notify.FromEnv(log)
		if notifier.Configured() {
			notifier.Push(ctx, checkin.Title(summary), report)
		} else {
			log.Debug().Msg("no notification channels configured")
		}
	}

	if runErr != nil {
		return runErr
	}
	if bad := summary.BadCount(); bad > 0 {
		return fmt.Errorf("%d account(s) failed", bad)
	}
	return nil
}

// dryRun prints per-account eligibility from stored records only.
func dryRun(log zerolog.Logger, accounts []config.Account, history store.HistoryStore) error {
	records, err := history.Load()
	if err != nil {
		return err
	}

	now := time.Now()
	for i, acct := range accounts {
		name := acct.DisplayName(i)
		rec, ok := records[acct.Key()]
		if !ok {
			fmt.Printf("%s: never signed in, eligible now\n", name)
			continue
		}
		if checkin.IsInCooldown(rec.Time, now) {
			fmt.Printf("%s: in cooldown, ready in %s\n", name,
				checkin.FormatTimeRemaining(checkin.NextEligibleTime(rec.Time).Sub(now)))
		} else {
			fmt.Printf("%s: eligible now\n", name)
		}
	}
	log.Info().Int("accounts", len(accounts)).Msg("dry run complete")
	return nil
}

// renderStored prints the stored settlement state for every account.
func renderStored(log zerolog.Logger, opts runOptions) error {
	accounts, err := config.LoadAccounts()
	if err != nil {
		return err
	}
	history, _, err := openStores(opts)
	if err != nil {
		return err
	}
	records, err := history.Load()
	if err != nil {
		return err
	}

	now := time.Now()
	for i, acct := range accounts {
		name := acct.DisplayName(i)
		rec, ok := records[acct.Key()]
		if !ok {
			fmt.Printf("%s: no record\n", name)
			continue
		}
		balance := "unknown balance"
		if rec.Balance != nil {
			balance = fmt.Sprintf("$%.2f", *rec.Balance)
		}
		fmt.Printf("%s: last signin %s, %s, next attempt %s\n",
			name, rec.Time.Format("2006-01-02 15:04"), balance,
			checkin.FormatTimeRemaining(checkin.NextEligibleTime(rec.Time).Sub(now)))
	}
	log.Debug().Int("records", len(records)).Msg("report rendered")
	return nil
}

// openStores selects the persistence backend: flag first, then CHECKIN_STORE,
// then the file default.
func openStores(opts runOptions) (store.HistoryStore, store.BalanceHashStore, error) {
	backend := opts.storeBackend
	if backend == "" {
		backend = os.Getenv("CHECKIN_STORE")
	}

	switch backend {
	case "", "file":
		if err := os.MkdirAll(opts.dataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		return store.NewFileHistoryStore(opts.dataDir), store.NewFileBalanceHashStore(opts.dataDir), nil
	case "sqlite":
		if err := os.MkdirAll(opts.dataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := store.OpenSqlite(opts.dataDir + "/checkin.db")
		if err != nil {
			return nil, nil, err
		}
		return db, db.HashStore(), nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func bypassProvider() bypass.Provider {
	if url := os.Getenv("CHECKIN_SOLVER_URL"); url != "" {
		return bypass.NewSolverClient(url)
	}
	return bypass.Unavailable{}
}

func browserTrigger() browser.Trigger {
	if url := os.Getenv("CHECKIN_BROWSER_URL"); url != "" {
		return browser.NewSidecar(url)
	}
	return browser.Unavailable{}
}
