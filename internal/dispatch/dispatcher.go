// Package dispatch turns one account into one signin attempt: it walks the
// provider family's ordered strategy chain (direct HTTP, bypass-token HTTP,
// browser OAuth, browser credentials) until a strategy lands or a terminal
// error stops the walk, and observes the account balance around the attempt.
package dispatch

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pysugar/relay-checkin/internal/browser"
	"github.com/pysugar/relay-checkin/internal/bypass"
	"github.com/pysugar/relay-checkin/internal/config"
	"github.com/pysugar/relay-checkin/internal/httpx"
	"github.com/pysugar/relay-checkin/internal/provider"
)

// Strategy names, reported in outcomes and logs.
const (
	StrategyHTTPDirect         = "http_direct"
	StrategyHTTPBypass         = "http_bypass"
	StrategyHTTPVisit          = "http_visit"
	StrategyBrowserOAuth       = "browser_oauth"
	StrategyBrowserCredentials = "browser_credentials"
)

// consolePath is the account page whose visit triggers the reward on
// implicit-trigger providers.
const consolePath = "/console"

// balanceEpsilon is the widest gap still treated as "unchanged" when
// comparing scaled balances.
const balanceEpsilon = 0.005

var defaultRecheckDelays = []time.Duration{3 * time.Second, 10 * time.Second, 30 * time.Second}

// Outcome is what one dispatched account attempt produced. Balance pointers
// are nil when the corresponding observation never succeeded.
type Outcome struct {
	Success       bool
	Strategy      string
	BalanceBefore *float64
	BalanceAfter  *float64
	UsedQuota     *float64
	ErrorKind     ErrorKind
	Message       string
}

// Dispatcher executes signin attempts. One instance is shared by all
// concurrent accounts in a run; per-account state lives in sessions.
type Dispatcher struct {
	Client  *http.Client
	Bypass  *bypass.Cache
	Browser browser.Trigger
	Retry   httpx.RetryPolicy
	Log     zerolog.Logger

	// RecheckDelays schedules the balance re-polls after an accepted signin
	// whose balance has not moved yet. Defaults to 3s/10s/30s.
	RecheckDelays []time.Duration

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a dispatcher with the default retry policy and recheck schedule.
func New(client *http.Client, cache *bypass.Cache, trigger browser.Trigger, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Client:  client,
		Bypass:  cache,
		Browser: trigger,
		Retry:   httpx.DefaultRetryPolicy(),
		Log:     log,
	}
}

type runFunc func(ctx context.Context, sess *session) (*browser.Result, error)

type strategy struct {
	name string
	run  runFunc
}

// Execute runs the full attempt for one account: observe the balance, walk
// the strategy chain, confirm the balance afterwards. It never returns a Go
// error; every failure is encoded in the Outcome.
func (d *Dispatcher) Execute(ctx context.Context, acct config.Account, prof provider.Profile) Outcome {
	log := d.Log.With().Str("provider", prof.Name).Logger()
	sess := newSession(d.Client, acct, prof, d.Retry, log)

	before, used, err := d.observe(ctx, sess, prof, log)
	if err != nil {
		return d.failure("", err, nil, nil)
	}

	chain := d.chain(acct, prof)
	if len(chain) == 0 {
		return Outcome{
			ErrorKind:     ErrNoFallback,
			Message:       "no applicable signin strategy for this account",
			BalanceBefore: before,
			UsedQuota:     used,
		}
	}

	var lastName string
	var lastErr error
	for _, strat := range chain {
		log.Debug().Str("strategy", strat.name).Msg("attempting signin strategy")

		res, err := strat.run(ctx, sess)
		if err == nil {
			if res != nil {
				return d.browserOutcome(ctx, sess, strat.name, res, before, used)
			}
			after, usedAfter := d.confirm(ctx, sess, before)
			if usedAfter == nil {
				usedAfter = used
			}
			return Outcome{
				Success:       true,
				Strategy:      strat.name,
				BalanceBefore: before,
				BalanceAfter:  after,
				UsedQuota:     usedAfter,
			}
		}

		kind := KindOf(err)
		if !kind.fallbackable() {
			return d.failure(strat.name, err, before, used)
		}
		log.Warn().Str("strategy", strat.name).Str("kind", string(kind)).
			Msg("strategy failed, falling back")
		lastName, lastErr = strat.name, err
	}

	return d.failure(lastName, wrapError(ErrNoFallback, lastErr, "all signin strategies exhausted"), before, used)
}

// chain builds the ordered strategy list for the account's provider family.
func (d *Dispatcher) chain(acct config.Account, prof provider.Profile) []strategy {
	var chain []strategy

	switch prof.Family {
	case provider.FamilyBypassToken:
		chain = append(chain, strategy{StrategyHTTPDirect, d.runDirect()})
		if prof.NeedsBypassTokens() {
			chain = append(chain, strategy{StrategyHTTPBypass, d.runBypass(prof)})
		}
	case provider.FamilyImplicitTrigger:
		chain = append(chain, strategy{StrategyHTTPVisit, d.runVisit(prof)})
	}

	// Browser strategies close every chain; OAuth identity wins over raw
	// credentials when both are configured.
	switch {
	case acct.HasOAuth():
		chain = append(chain, strategy{StrategyBrowserOAuth, d.runOAuth(acct, prof)})
	case acct.HasCredentials():
		chain = append(chain, strategy{StrategyBrowserCredentials, d.runCredentials(acct, prof)})
	}

	return chain
}

func (d *Dispatcher) runDirect() runFunc {
	return func(ctx context.Context, sess *session) (*browser.Result, error) {
		return nil, sess.PostSignin(ctx)
	}
}

func (d *Dispatcher) runBypass(prof provider.Profile) runFunc {
	return func(ctx context.Context, sess *session) (*browser.Result, error) {
		tokens, err := d.Bypass.Get(ctx, prof.Domain, prof.LoginURL(), prof.BypassTokenNames)
		if err != nil {
			return nil, wrapError(ErrSiteDefense, err, "bypass tokens unavailable")
		}
		aug := sess.withBypassTokens(tokens)
		if err := aug.PostSignin(ctx); err != nil {
			return nil, err
		}
		// The edge demanded tokens; keep them for the balance confirmation.
		sess.cookies = aug.cookies
		return nil, nil
	}
}

func (d *Dispatcher) runVisit(prof provider.Profile) runFunc {
	return func(ctx context.Context, sess *session) (*browser.Result, error) {
		return nil, sess.Visit(ctx, prof.Domain+consolePath)
	}
}

func (d *Dispatcher) runOAuth(acct config.Account, prof provider.Profile) runFunc {
	return func(ctx context.Context, sess *session) (*browser.Result, error) {
		authURL, err := browser.AuthorizeURL(acct.OAuthProvider, prof.Domain+"/oauth/callback", uuid.NewString())
		if err != nil {
			return nil, wrapError(ErrConfig, err, "oauth strategy")
		}
		res := d.Browser.ViaOAuth(ctx, browser.OAuthRequest{
			AccountName:   acct.Name,
			Domain:        prof.Domain,
			LoginURL:      prof.LoginURL(),
			OAuthProvider: acct.OAuthProvider,
			AuthorizeURL:  authURL,
			SessionCookie: acct.Cookies["session"],
		})
		if !res.Success {
			return nil, newError(ErrRejected, "browser oauth signin failed: %s", res.Error)
		}
		return &res, nil
	}
}

func (d *Dispatcher) runCredentials(acct config.Account, prof provider.Profile) runFunc {
	return func(ctx context.Context, sess *session) (*browser.Result, error) {
		res := d.Browser.ViaCredentials(ctx, browser.CredentialRequest{
			AccountName: acct.Name,
			Domain:      prof.Domain,
			LoginURL:    prof.LoginURL(),
			Username:    acct.Username,
			Password:    acct.Password,
		})
		if !res.Success {
			return nil, newError(ErrRejected, "browser credential signin failed: %s", res.Error)
		}
		return &res, nil
	}
}

// observe fetches the pre-attempt balance. A dead session is terminal here:
// no strategy can help an account whose cookies the provider rejects. Any
// other failure downgrades to a missing baseline; first runs and blocked
// balance endpoints still get their signin attempt.
func (d *Dispatcher) observe(ctx context.Context, sess *session, prof provider.Profile, log zerolog.Logger) (*float64, *float64, error) {
	quota, usedQuota, err := sess.FetchBalance(ctx)
	if err == nil {
		return &quota, &usedQuota, nil
	}
	if KindOf(err) == ErrSessionInvalid {
		return nil, nil, err
	}

	if KindOf(err).fallbackable() && prof.NeedsBypassTokens() {
		tokens, terr := d.Bypass.Get(ctx, prof.Domain, prof.LoginURL(), prof.BypassTokenNames)
		if terr == nil {
			aug := sess.withBypassTokens(tokens)
			if quota, usedQuota, err2 := aug.FetchBalance(ctx); err2 == nil {
				sess.cookies = aug.cookies
				return &quota, &usedQuota, nil
			}
		}
	}

	log.Warn().Err(err).Msg("balance observation failed, proceeding without baseline")
	return nil, nil, nil
}

// confirm re-reads the balance after an accepted signin. Providers credit
// asynchronously, so an unchanged balance is re-polled on a fixed schedule
// before being reported as-is.
func (d *Dispatcher) confirm(ctx context.Context, sess *session, before *float64) (*float64, *float64) {
	var after, used *float64

	poll := func() bool {
		quota, usedQuota, err := sess.FetchBalance(ctx)
		if err != nil {
			return false
		}
		after, used = &quota, &usedQuota
		return before == nil || math.Abs(quota-*before) > balanceEpsilon
	}

	if poll() {
		return after, used
	}
	for _, delay := range d.recheckDelays() {
		if d.sleepFn()(ctx, delay) != nil {
			break
		}
		if poll() {
			break
		}
	}
	return after, used
}

func (d *Dispatcher) browserOutcome(ctx context.Context, sess *session, name string, res *browser.Result, before, used *float64) Outcome {
	out := Outcome{Success: true, Strategy: name, UsedQuota: used}

	out.BalanceBefore = before
	if res.BalanceBefore != nil {
		out.BalanceBefore = res.BalanceBefore
	}

	if res.BalanceAfter != nil {
		out.BalanceAfter = res.BalanceAfter
		return out
	}

	// The sidecar confirmed the signin but observed no balance; fall back to
	// the HTTP observation.
	after, usedAfter := d.confirm(ctx, sess, out.BalanceBefore)
	out.BalanceAfter = after
	if usedAfter != nil {
		out.UsedQuota = usedAfter
	}
	return out
}

func (d *Dispatcher) failure(strategyName string, err error, before, used *float64) Outcome {
	return Outcome{
		Strategy:      strategyName,
		BalanceBefore: before,
		UsedQuota:     used,
		ErrorKind:     KindOf(err),
		Message:       err.Error(),
	}
}

func (d *Dispatcher) recheckDelays() []time.Duration {
	if len(d.RecheckDelays) > 0 {
		return d.RecheckDelays
	}
	return defaultRecheckDelays
}

func (d *Dispatcher) sleepFn() func(ctx context.Context, dur time.Duration) error {
	if d.sleep != nil {
		return d.sleep
	}
	return func(ctx context.Context, dur time.Duration) error {
		timer := time.NewTimer(dur)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
