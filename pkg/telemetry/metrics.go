package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOrdersPlacedTotal     = "courier_orders_placed_total"
	MetricOrdersClaimedTotal    = "courier_orders_claimed_total"
	MetricClaimConflictsTotal   = "courier_claim_conflicts_total"
	MetricOrdersAdvancedTotal   = "courier_orders_advanced_total"
	MetricOrdersCancelledTotal  = "courier_orders_cancelled_total"
	MetricCacheReadsTotal       = "courier_cache_reads_total"
	MetricCacheWriteFailures    = "courier_cache_write_failures_total"
	MetricReconcileRunsTotal    = "courier_reconcile_runs_total"
	MetricReconcileFailures     = "courier_reconcile_failures_total"
	MetricTokenRefreshTotal     = "courier_token_refresh_total"
	MetricAPIBreakerOpen        = "courier_api_breaker_open"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	OrdersPlacedTotal    metric.Int64Counter
	OrdersClaimedTotal   metric.Int64Counter
	ClaimConflictsTotal  metric.Int64Counter
	OrdersAdvancedTotal  metric.Int64Counter
	OrdersCancelledTotal metric.Int64Counter
	CacheReadsTotal      metric.Int64Counter
	CacheWriteFailures   metric.Int64Counter
	ReconcileRunsTotal   metric.Int64Counter
	ReconcileFailures    metric.Int64Counter
	TokenRefreshTotal    metric.Int64Counter
	APIBreakerOpen       metric.Int64ObservableGauge

	// State for the observable gauge
	mu          sync.RWMutex
	breakerOpen bool
	initialized bool
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders placed by customers"))
	if err != nil {
		return err
	}

	m.OrdersClaimedTotal, err = meter.Int64Counter(MetricOrdersClaimedTotal, metric.WithDescription("Total successful delivery claims"))
	if err != nil {
		return err
	}

	m.ClaimConflictsTotal, err = meter.Int64Counter(MetricClaimConflictsTotal, metric.WithDescription("Total claims lost to another deliverer"))
	if err != nil {
		return err
	}

	m.OrdersAdvancedTotal, err = meter.Int64Counter(MetricOrdersAdvancedTotal, metric.WithDescription("Total order status advancements"))
	if err != nil {
		return err
	}

	m.OrdersCancelledTotal, err = meter.Int64Counter(MetricOrdersCancelledTotal, metric.WithDescription("Total order cancellations"))
	if err != nil {
		return err
	}

	m.CacheReadsTotal, err = meter.Int64Counter(MetricCacheReadsTotal, metric.WithDescription("Local cache reads, labelled hit/miss"))
	if err != nil {
		return err
	}

	m.CacheWriteFailures, err = meter.Int64Counter(MetricCacheWriteFailures, metric.WithDescription("Best-effort cache write-through failures"))
	if err != nil {
		return err
	}

	m.ReconcileRunsTotal, err = meter.Int64Counter(MetricReconcileRunsTotal, metric.WithDescription("Reconciliation passes started"))
	if err != nil {
		return err
	}

	m.ReconcileFailures, err = meter.Int64Counter(MetricReconcileFailures, metric.WithDescription("Reconciliation passes that failed"))
	if err != nil {
		return err
	}

	m.TokenRefreshTotal, err = meter.Int64Counter(MetricTokenRefreshTotal, metric.WithDescription("Silent credential refreshes attempted"))
	if err != nil {
		return err
	}

	m.APIBreakerOpen, err = meter.Int64ObservableGauge(MetricAPIBreakerOpen, metric.WithDescription("API circuit breaker state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			v := int64(0)
			if m.breakerOpen {
				v = 1
			}
			obs.Observe(v)
			return nil
		}))
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// ready reports whether InitMetrics has run. Counters are nil before that,
// so recording helpers no-op until telemetry is set up.
func (m *MetricsHolder) ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SetAPIBreakerOpen records the circuit breaker state
func (m *MetricsHolder) SetAPIBreakerOpen(open bool) {
	m.mu.Lock()
	m.breakerOpen = open
	m.mu.Unlock()
}

// RecordCacheRead increments the cache read counter with a hit/miss label
func (m *MetricsHolder) RecordCacheRead(ctx context.Context, key string, hit bool) {
	if !m.ready() {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheReadsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
		attribute.String("result", result),
	))
}

// RecordCacheWriteFailure increments the write-through failure counter
func (m *MetricsHolder) RecordCacheWriteFailure(ctx context.Context, key string) {
	if !m.ready() {
		return
	}
	m.CacheWriteFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

// RecordReconcile increments the reconciliation counters
func (m *MetricsHolder) RecordReconcile(ctx context.Context, collection string, failed bool) {
	if !m.ready() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("collection", collection))
	m.ReconcileRunsTotal.Add(ctx, 1, attrs)
	if failed {
		m.ReconcileFailures.Add(ctx, 1, attrs)
	}
}

// RecordMutation increments the counter for a lifecycle mutation
func (m *MetricsHolder) RecordMutation(ctx context.Context, op string) {
	if !m.ready() {
		return
	}
	switch op {
	case "place":
		m.OrdersPlacedTotal.Add(ctx, 1)
	case "claim":
		m.OrdersClaimedTotal.Add(ctx, 1)
	case "claim_conflict":
		m.ClaimConflictsTotal.Add(ctx, 1)
	case "advance":
		m.OrdersAdvancedTotal.Add(ctx, 1)
	case "cancel":
		m.OrdersCancelledTotal.Add(ctx, 1)
	}
}

// RecordTokenRefresh increments the silent refresh counter
func (m *MetricsHolder) RecordTokenRefresh(ctx context.Context, ok bool) {
	if !m.ready() {
		return
	}
	m.TokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("refreshed", ok)))
}
