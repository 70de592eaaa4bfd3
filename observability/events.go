package observability

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"shopchain/core/events"
)

type eventMetrics struct {
	emitted     *prometheus.CounterVec
	orderCents  prometheus.Counter
	rewardCents *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed ledger events. The
// registry is an events.Emitter so it can sit in the executor fan-out.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shop",
				Subsystem: "events",
				Name:      "committed_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			orderCents: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "shop",
				Subsystem: "market",
				Name:      "settled_cents_total",
				Help:      "USD cents settled by paid orders.",
			}),
			rewardCents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shop",
				Subsystem: "market",
				Name:      "reward_cents_total",
				Help:      "USD cents paid out as cashback or referral commission.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.orderCents, eventRegistry.rewardCents)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	typ := strings.TrimSpace(evt.EventType())
	if typ == "" {
		typ = "unknown"
	}
	m.emitted.WithLabelValues(typ).Inc()

	committed, ok := evt.(events.Committed)
	if !ok {
		return
	}
	switch typ {
	case events.TypeMarketOrderPaid:
		m.orderCents.Add(centsAttr(committed.Attributes, "totalCents"))
	case events.TypeMarketCashbackIssued:
		m.rewardCents.WithLabelValues("cashback").Add(centsAttr(committed.Attributes, "cents"))
	case events.TypeReferralRewarded:
		m.rewardCents.WithLabelValues("referral").Add(centsAttr(committed.Attributes, "amountCents"))
	}
}

func centsAttr(attrs map[string]string, key string) float64 {
	v, err := strconv.ParseUint(attrs[key], 10, 64)
	if err != nil {
		return 0
	}
	return float64(v)
}
