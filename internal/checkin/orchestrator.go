package checkin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pysugar/relay-checkin/internal/config"
	"github.com/pysugar/relay-checkin/internal/logging"
	"github.com/pysugar/relay-checkin/internal/store"
)

// DefaultConcurrency bounds how many accounts run at once.
const DefaultConcurrency = 3

// cacheClearer is the one bypass-cache operation the orchestrator needs.
type cacheClearer interface {
	Clear()
}

// Orchestrator fans the account list out over a bounded worker pool,
// aggregates one RunSummary, and persists the merged history and the balance
// fingerprint.
type Orchestrator struct {
	Accounts    []config.Account
	Processor   *Processor
	History     store.HistoryStore
	Hashes      store.BalanceHashStore
	Bypass      cacheClearer
	Concurrency int
	Log         zerolog.Logger

	// Now is replaced in tests.
	Now func() time.Time
}

// Run executes one complete batch. The summary is always usable; the error
// reports persistence problems only, faults inside accounts never escape
// their own result.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	runID := uuid.NewString()
	log := logging.ForRun(o.Log, runID)
	started := o.now()

	history, err := o.History.Load()
	if err != nil {
		return RunSummary{RunID: runID}, fmt.Errorf("load signin history: %w", err)
	}
	prevHash, err := o.Hashes.Load()
	if err != nil {
		return RunSummary{RunID: runID}, fmt.Errorf("load balance hash: %w", err)
	}

	if o.Bypass != nil {
		o.Bypass.Clear()
	}

	log.Info().Int("accounts", len(o.Accounts)).Int("concurrency", o.concurrency()).
		Msg("run started")

	results := make([]SigninResult, len(o.Accounts))
	sem := make(chan struct{}, o.concurrency())
	var wg sync.WaitGroup

	for i, acct := range o.Accounts {
		wg.Add(1)
		go func(i int, acct config.Account) {
			defer wg.Done()
			defer func() {
				// One account's panic becomes that account's ERROR; the
				// batch keeps going.
				if r := recover(); r != nil {
					log.Error().Int("index", i).Interface("panic", r).Msg("account processing panicked")
					results[i] = SigninResult{
						AccountKey:  acct.Key(),
						DisplayName: acct.DisplayName(i),
						Status:      StatusError,
						Message:     fmt.Sprintf("internal fault: %v", r),
					}
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = o.Processor.Process(ctx, acct, i, priorRecord(history, acct.Key()))
		}(i, acct)
	}
	wg.Wait()

	summary := RunSummary{
		RunID:     runID,
		StartedAt: started,
		Results:   results,
	}

	newHash := BalanceHash(o.collectBalances(history, results))
	summary.FirstRun = prevHash == ""
	summary.BalanceChanged = prevHash != "" && newHash != prevHash

	merged := mergeRecords(history, results)

	var persistErr error
	if err := o.History.Save(merged); err != nil {
		log.Error().Err(err).Msg("persist signin history failed")
		persistErr = fmt.Errorf("save signin history: %w", err)
	}
	if err := o.Hashes.Save(newHash); err != nil {
		log.Error().Err(err).Msg("persist balance hash failed")
		if persistErr == nil {
			persistErr = fmt.Errorf("save balance hash: %w", err)
		}
	}

	summary.FinishedAt = o.now()
	log.Info().
		Int("success", summary.Count(StatusSuccess)+summary.Count(StatusFirstRun)).
		Int("cooldown", summary.Count(StatusCooldown)+summary.Count(StatusSkipped)).
		Int("bad", summary.BadCount()).
		Msg("run finished")

	return summary, persistErr
}

// collectBalances builds the fingerprint input: every account with a usable
// balance contributes, observed values first, carried-over last-known values
// otherwise.
func (o *Orchestrator) collectBalances(history map[string]store.Record, results []SigninResult) map[string]float64 {
	balances := make(map[string]float64, len(results))
	for _, r := range results {
		switch {
		case r.BalanceAfter != nil:
			balances[r.AccountKey] = *r.BalanceAfter
		case r.BalanceBefore != nil:
			balances[r.AccountKey] = *r.BalanceBefore
		default:
			if prior, ok := history[r.AccountKey]; ok && prior.Balance != nil {
				balances[r.AccountKey] = *prior.Balance
			}
		}
	}
	return balances
}

// mergeRecords produces a fresh map; the loaded history is never mutated.
func mergeRecords(history map[string]store.Record, results []SigninResult) map[string]store.Record {
	merged := make(map[string]store.Record, len(history)+len(results))
	for k, v := range history {
		merged[k] = v
	}
	for _, r := range results {
		if r.NewRecord != nil {
			merged[r.AccountKey] = *r.NewRecord
		}
	}
	return merged
}

func priorRecord(history map[string]store.Record, key string) *store.Record {
	if rec, ok := history[key]; ok {
		return &rec
	}
	return nil
}

func (o *Orchestrator) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return DefaultConcurrency
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
