// Package quota tracks per-domain analysis credits and gates dispatch.
package quota

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Johnlouiee/openai-egrowtify/internal/conf"
	"github.com/Johnlouiee/openai-egrowtify/internal/egrowtify"
	"github.com/Johnlouiee/openai-egrowtify/internal/errors"
	"github.com/Johnlouiee/openai-egrowtify/internal/logging"
)

var serviceLogger *slog.Logger

func init() {
	var err error
	logFilePath := filepath.Join("logs", "quota.log")
	var closeFn func() error
	serviceLogger, closeFn, err = logging.NewFileLogger(logFilePath, "quota", slog.LevelDebug)
	if err != nil {
		log.Printf("Failed to initialize quota file logger at %s: %v. Service logging disabled.", logFilePath, err)
		serviceLogger = slog.New(slog.NewJSONHandler(io.Discard, nil)).With("service", "quota")
	}
	_ = closeFn // process-lifetime logger
}

// Fetcher retrieves usage status from the backend.
type Fetcher interface {
	UsageStatus(ctx context.Context, domain egrowtify.Domain) (*egrowtify.UsageStatus, error)
}

// Decision is the gating outcome for an analysis attempt.
type Decision int

const (
	// Allow permits the analysis with no caveats.
	Allow Decision = iota
	// AllowLowBalance permits the analysis but the caller should raise a
	// non-blocking low-balance warning.
	AllowLowBalance
	// Deny blocks the analysis; the caller should offer purchase/subscribe
	// affordances instead.
	Deny
)

// Snapshot is the tracker's current view of one domain's quota.
type Snapshot struct {
	FreeAnalysesUsed int
	PurchasedCredits int
	RemainingTotal   int
	Fetched          bool // false until a successful backend fetch
}

// Tracker holds per-domain quota state. The backend is the sole source of
// truth: state changes only on a successful fetch, never by local decrement.
type Tracker struct {
	mu       sync.RWMutex
	fetcher  Fetcher
	statuses map[egrowtify.Domain]egrowtify.UsageStatus

	lowBalanceThreshold int
	defaultAllowance    int
}

// NewTracker creates a Tracker using the given fetcher and settings.
func NewTracker(fetcher Fetcher, settings *conf.Settings) *Tracker {
	return &Tracker{
		fetcher:             fetcher,
		statuses:            make(map[egrowtify.Domain]egrowtify.UsageStatus),
		lowBalanceThreshold: settings.Analysis.LowBalanceThreshold,
		defaultAllowance:    settings.Analysis.FreeAnalysesBasic,
	}
}

// Refresh fetches both domains' usage status. The two fetches are issued
// together and applied independently: one domain failing does not prevent
// the other from updating. Unreachable-backend failures are swallowed (the
// UI must not block on them); any other failure is returned.
func (t *Tracker) Refresh(ctx context.Context) error {
	var g errgroup.Group
	for _, domain := range []egrowtify.Domain{egrowtify.DomainPlant, egrowtify.DomainSoil} {
		g.Go(func() error {
			return t.refreshDomain(ctx, domain)
		})
	}
	return g.Wait()
}

// RefreshDomain fetches a single domain's usage status, with the same
// unreachable-swallowing behavior as Refresh.
func (t *Tracker) RefreshDomain(ctx context.Context, domain egrowtify.Domain) error {
	return t.refreshDomain(ctx, domain)
}

func (t *Tracker) refreshDomain(ctx context.Context, domain egrowtify.Domain) error {
	status, err := t.fetcher.UsageStatus(ctx, domain)
	if err != nil {
		if errors.IsUnreachable(err) {
			// Backend might simply not be running yet; keep whatever we have.
			serviceLogger.Warn("usage status fetch skipped, backend unreachable",
				"domain", domain)
			return nil
		}
		serviceLogger.Error("usage status fetch failed",
			"domain", domain,
			"error", err)
		return err
	}

	t.mu.Lock()
	// Refresh, not merge: the fetched value replaces the cached one wholesale.
	t.statuses[domain] = *status
	t.mu.Unlock()

	serviceLogger.Debug("usage status applied",
		"domain", domain,
		"remaining_total", status.RemainingTotal)
	return nil
}

// Snapshot returns the tracker's current view of a domain. Before any
// successful fetch it reports the configured free-trial allowance, matching
// the optimistic initial state the backend would report for a new user.
func (t *Tracker) Snapshot(domain egrowtify.Domain) Snapshot {
	t.mu.RLock()
	status, ok := t.statuses[domain]
	t.mu.RUnlock()

	if !ok {
		return Snapshot{
			RemainingTotal: t.defaultAllowance,
		}
	}

	remaining := status.RemainingTotal
	if remaining < 0 {
		remaining = 0
	}

	return Snapshot{
		FreeAnalysesUsed: status.FreeAnalysesUsed,
		PurchasedCredits: status.PurchasedCredits,
		RemainingTotal:   remaining,
		Fetched:          true,
	}
}

// Gate decides whether an analysis may be dispatched for the domain.
func (t *Tracker) Gate(domain egrowtify.Domain) (Decision, Snapshot) {
	snapshot := t.Snapshot(domain)

	switch {
	case snapshot.RemainingTotal <= 0:
		return Deny, snapshot
	case snapshot.RemainingTotal <= t.lowBalanceThreshold:
		return AllowLowBalance, snapshot
	default:
		return Allow, snapshot
	}
}
