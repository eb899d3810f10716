package compile

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/promptcap/connectivity"
	"github.com/hazyhaar/promptcap/kvstore"
)

// Usage is what the tier service reports for a user.
type Usage struct {
	Tier          string `json:"tier"`
	DailyCompiles int    `json:"dailyCompiles"`
}

// TierLookup reports a user's tier and today's compile count.
type TierLookup interface {
	Usage(ctx context.Context, userID string) (Usage, error)
}

// Recorder is implemented by tier lookups that keep their own count. The
// pipeline calls Record after each cloud summary it did not serve from cache.
type Recorder interface {
	Record(ctx context.Context, userID string) error
}

// TierFunc adapts a function to TierLookup.
type TierFunc func(ctx context.Context, userID string) (Usage, error)

// Usage calls f.
func (f TierFunc) Usage(ctx context.Context, userID string) (Usage, error) { return f(ctx, userID) }

// RemoteTiers asks the tier service. The service counts compiles itself.
type RemoteTiers struct {
	fetch *connectivity.Fetcher
}

// NewRemoteTiers returns a lookup posting {"userId"} to f's endpoint.
func NewRemoteTiers(f *connectivity.Fetcher) *RemoteTiers {
	return &RemoteTiers{fetch: f}
}

// Usage implements TierLookup.
func (r *RemoteTiers) Usage(ctx context.Context, userID string) (Usage, error) {
	var u Usage
	if err := r.fetch.PostJSON(ctx, map[string]string{"userId": userID}, &u); err != nil {
		return Usage{}, fmt.Errorf("compile: tier lookup: %w", err)
	}
	return u, nil
}

// Ledger counts compiles per user and UTC day in a kvstore namespace.
// Every user is reported on the same tier. Counts are read-modify-write,
// so concurrent compiles for one user may undercount.
type Ledger struct {
	store kvstore.Store
	tier  string
	now   func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLedgerClock sets the clock used to pick the day.
func WithLedgerClock(fn func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = fn }
}

// NewLedger returns a Ledger reporting tier for every user.
func NewLedger(store kvstore.Store, tier string, opts ...LedgerOption) *Ledger {
	l := &Ledger{store: store, tier: tier, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) key(userID string) string {
	return userID + "@" + l.now().UTC().Format(time.DateOnly)
}

// Usage implements TierLookup.
func (l *Ledger) Usage(ctx context.Context, userID string) (Usage, error) {
	var n int
	if _, err := kvstore.GetJSON(ctx, l.store, l.key(userID), &n); err != nil {
		return Usage{}, err
	}
	return Usage{Tier: l.tier, DailyCompiles: n}, nil
}

// Record implements Recorder.
func (l *Ledger) Record(ctx context.Context, userID string) error {
	key := l.key(userID)
	var n int
	if _, err := kvstore.GetJSON(ctx, l.store, key, &n); err != nil {
		return err
	}
	return kvstore.SetJSON(ctx, l.store, key, n+1)
}

// constrained reports whether tier is subject to the daily downgrade.
func constrained(tier string) bool {
	return tier == "go" || tier == "free"
}

// route is the provider and model a cloud request goes to.
type route struct {
	provider, model string
	downgraded      bool
}

// selectRoute applies the request's provider and model over the configured
// primary, then downgrades to the fallback when a constrained tier has
// used its daily allowance.
func (c Config) selectRoute(o Options, u Usage) route {
	r := route{provider: c.PrimaryProvider, model: c.PrimaryModel}
	if o.Provider != "" {
		r.provider = o.Provider
		r.model = ""
	}
	if o.Model != "" {
		r.model = o.Model
	}
	if constrained(u.Tier) && u.DailyCompiles >= c.FreeDailyLimit {
		r = route{provider: c.FallbackProvider, model: c.FallbackModel, downgraded: true}
	}
	return r
}
