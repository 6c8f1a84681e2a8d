// Package telemetry provides Prometheus metrics, tracing and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	LiveChecks          *prometheus.CounterVec // result=live|offline|error
	LiveTransitions     prometheus.Counter
	AnnouncementsSent   prometheus.Counter
	AnnouncementsFailed prometheus.Counter
	CardLookups         *prometheus.CounterVec // result=found|missing|error
	StockLookups        *prometheus.CounterVec // result=ok|no_quote|limited|error
	MessagesHandled     *prometheus.CounterVec // module=cards|stock

	// Histograms (seconds)
	LiveCheckDuration prometheus.Observer
	BroadcastDuration prometheus.Observer

	// Gauges
	StreamLiveGauge prometheus.Gauge // 1=live,0=offline
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		LiveChecks = promauto.NewCounterVec(prometheus.CounterOpts{Name: "herald_live_checks_total", Help: "Twitch stream status checks by result"}, []string{"result"})
		LiveTransitions = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_live_transitions_total", Help: "Offline to live transitions observed"})
		AnnouncementsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_announcements_sent_total", Help: "Go-live announcements delivered to a channel"})
		AnnouncementsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_announcements_failed_total", Help: "Go-live announcements that failed for a channel"})
		CardLookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "herald_card_lookups_total", Help: "Card lookups by result"}, []string{"result"})
		StockLookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "herald_stock_lookups_total", Help: "Stock quote lookups by result"}, []string{"result"})
		MessagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "herald_messages_handled_total", Help: "Chat messages a module responded to"}, []string{"module"})
		LiveCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "herald_live_check_duration_seconds", Help: "Stream status check duration seconds", Buckets: prometheus.DefBuckets})
		BroadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "herald_broadcast_duration_seconds", Help: "Go-live broadcast duration seconds", Buckets: prometheus.DefBuckets})
		StreamLiveGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "herald_stream_live", Help: "Last observed stream state live=1 offline=0"})
	})
}

// RecordLiveCheck counts a status check outcome and updates the live gauge on success.
func RecordLiveCheck(live bool, err error) {
	if LiveChecks == nil {
		return
	}
	switch {
	case err != nil:
		LiveChecks.WithLabelValues("error").Inc()
		return
	case live:
		LiveChecks.WithLabelValues("live").Inc()
	default:
		LiveChecks.WithLabelValues("offline").Inc()
	}
	if StreamLiveGauge != nil {
		if live {
			StreamLiveGauge.Set(1)
		} else {
			StreamLiveGauge.Set(0)
		}
	}
}

// IncLiveTransition counts an offline to live edge.
func IncLiveTransition() {
	if LiveTransitions != nil {
		LiveTransitions.Inc()
	}
}

// RecordAnnouncements adds per-channel delivery outcomes.
func RecordAnnouncements(sent, failed int) {
	if AnnouncementsSent != nil {
		AnnouncementsSent.Add(float64(sent))
	}
	if AnnouncementsFailed != nil {
		AnnouncementsFailed.Add(float64(failed))
	}
}

// IncCardLookup counts a card lookup outcome.
func IncCardLookup(result string) {
	if CardLookups != nil {
		CardLookups.WithLabelValues(result).Inc()
	}
}

// IncStockLookup counts a stock lookup outcome.
func IncStockLookup(result string) {
	if StockLookups != nil {
		StockLookups.WithLabelValues(result).Inc()
	}
}

// IncMessageHandled counts a chat message a module replied to.
func IncMessageHandled(module string) {
	if MessagesHandled != nil {
		MessagesHandled.WithLabelValues(module).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
