package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for lag tracking.
var (
	serverLagSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mwapi_server_lag_seconds",
		Help: "Last server replication lag reported through maxlag errors",
	})

	lagObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwapi_lag_observations_total",
		Help: "Total number of server lag observations recorded",
	})
)

// Tracker records server lag for one site.
type Tracker struct {
	store  Store
	site   string
	logger zerolog.Logger
}

// NewTracker creates a tracker for site backed by store. A nil store gets a
// MemoryStore.
func NewTracker(store Store, site string, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		site:   site,
		logger: logger,
	}
}

// Record stores an observed lag. The lag window starts now.
func (t *Tracker) Record(ctx context.Context, lag time.Duration) error {
	now := time.Now()
	state := &LagState{
		Site:       t.site,
		Lag:        lag,
		Until:      now.Add(lag),
		ObservedAt: now,
	}

	if err := t.store.Save(ctx, state); err != nil {
		return fmt.Errorf("store lag state: %w", err)
	}

	serverLagSeconds.Set(lag.Seconds())
	lagObservationsTotal.Inc()

	t.logger.Debug().
		Str("site", t.site).
		Dur("lag", lag).
		Time("until", state.Until).
		Msg("Server lag recorded")

	return nil
}

// State returns the current lag state, or nil if no lag was recorded.
func (t *Tracker) State(ctx context.Context) (*LagState, error) {
	state, err := t.store.Load(ctx, t.site)
	if err != nil {
		return nil, fmt.Errorf("load lag state: %w", err)
	}
	return state, nil
}

// Remaining returns how long a new call should hold off, capped at ceiling.
func (t *Tracker) Remaining(ctx context.Context, ceiling time.Duration) (time.Duration, error) {
	state, err := t.State(ctx)
	if err != nil {
		return 0, err
	}
	wait := state.Remaining()
	if wait > ceiling {
		wait = ceiling
	}
	if wait > 0 {
		t.logger.Debug().
			Str("site", t.site).
			Dur("wait", wait).
			Msg("Server lag window still open")
	}
	return wait, nil
}
