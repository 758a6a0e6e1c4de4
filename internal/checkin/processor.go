package checkin

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pysugar/relay-checkin/internal/config"
	"github.com/pysugar/relay-checkin/internal/dispatch"
	"github.com/pysugar/relay-checkin/internal/logging"
	"github.com/pysugar/relay-checkin/internal/provider"
	"github.com/pysugar/relay-checkin/internal/store"
	"github.com/pysugar/relay-checkin/internal/util"
)

// Executor runs one dispatched signin attempt. Satisfied by
// *dispatch.Dispatcher; faked in tests.
type Executor interface {
	Execute(ctx context.Context, acct config.Account, prof provider.Profile) dispatch.Outcome
}

// Processor walks one account through cooldown check, dispatch and balance
// analysis, producing exactly one SigninResult. It is stateless and safe for
// concurrent use.
type Processor struct {
	Catalog  *provider.Catalog
	Executor Executor
	Log      zerolog.Logger

	// Now is replaced in tests.
	Now func() time.Time
}

// Process resolves one account to its terminal result. It never returns an
// error; every fault becomes a FAILED or ERROR result.
func (p *Processor) Process(ctx context.Context, acct config.Account, index int, prior *store.Record) SigninResult {
	key := acct.Key()
	name := acct.DisplayName(index)
	now := p.now()
	log := logging.ForAccount(p.Log, name, acct.Provider)

	prof, ok := p.Catalog.Get(acct.Provider)
	if !ok {
		log.Error().Msg("unknown provider")
		return SigninResult{
			AccountKey:  key,
			DisplayName: name,
			Status:      StatusError,
			Message:     "unknown provider " + acct.Provider,
		}
	}

	if prior != nil && IsInCooldown(prior.Time, now) {
		eligible := NextEligibleTime(prior.Time)
		log.Info().Time("next_eligible", eligible).Msg("in cooldown, skipping")
		return SigninResult{
			AccountKey:    key,
			DisplayName:   name,
			Status:        StatusSkipped,
			BalanceBefore: prior.Balance,
			NextEligible:  &eligible,
		}
	}

	out := p.Executor.Execute(ctx, acct, prof)
	if !out.Success {
		status := StatusFailed
		if fatalKind(out.ErrorKind) {
			status = StatusError
		}
		log.Warn().Str("kind", string(out.ErrorKind)).Str("reason", out.Message).
			Msg("signin attempt failed")
		return SigninResult{
			AccountKey:    key,
			DisplayName:   name,
			Status:        status,
			BalanceBefore: out.BalanceBefore,
			Message:       util.Truncate(out.Message, util.DefaultErrMaxLen),
		}
	}

	if out.BalanceAfter == nil {
		log.Error().Str("strategy", out.Strategy).Msg("signin accepted but balance never observed")
		return SigninResult{
			AccountKey:    key,
			DisplayName:   name,
			Status:        StatusError,
			BalanceBefore: out.BalanceBefore,
			Message:       "could not observe balance after signin",
		}
	}

	baseline := out.BalanceBefore
	if baseline == nil && prior != nil {
		baseline = prior.Balance
	}

	status, diff := AnalyzeBalance(*out.BalanceAfter, baseline)
	if status == StatusCooldown && AnomalousDrop(diff) {
		log.Warn().Float64("diff", *diff).Msg("balance dropped well beyond the anomaly threshold")
	}

	result := SigninResult{
		AccountKey:    key,
		DisplayName:   name,
		Status:        status,
		BalanceBefore: baseline,
		BalanceAfter:  out.BalanceAfter,
		Diff:          diff,
		NewRecord:     &store.Record{Time: now, Balance: out.BalanceAfter},
	}
	if status == StatusCooldown {
		eligible := NextEligibleTime(now)
		result.NextEligible = &eligible
	}

	log.Info().Str("status", string(status)).Str("strategy", out.Strategy).Msg("account settled")
	return result
}

// fatalKind maps dispatch error kinds to ERROR; everything else recoverable
// maps to FAILED.
func fatalKind(kind dispatch.ErrorKind) bool {
	return kind.Fatal() || kind == dispatch.ErrUnexpected
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
