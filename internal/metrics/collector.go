// Package metrics is a small Prometheus-compatible collector. It renders the
// text exposition format directly instead of pulling in client_golang.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default is the process-wide collector.
var Default = New()

// Collector aggregates counters and histograms.
type Collector struct {
	counters   sync.Map // name{labels} -> *Counter
	histograms sync.Map // name{labels} -> *Histogram
	startTime  time.Time
}

func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc() { c.value.Add(1) }
func (c *Counter) Add(n int64) { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Counter returns or creates the counter for name and labels. labels is the
// rendered label set without braces, e.g. `command="help"`.
func (c *Collector) Counter(name, help, labels string) *Counter {
	key := name + "{" + labels + "}"
	if v, ok := c.counters.Load(key); ok {
		return v.(*Counter)
	}
	actual, _ := c.counters.LoadOrStore(key, &Counter{name: name, help: help, labels: labels})
	return actual.(*Counter)
}

// Histogram returns or creates the histogram for name and labels.
func (c *Collector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := name + "{" + labels + "}"
	if v, ok := c.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	hb := make([]histBucket, len(sorted))
	for i, b := range sorted {
		hb[i] = histBucket{le: b}
	}
	actual, _ := c.histograms.LoadOrStore(key, &Histogram{name: name, help: help, labels: labels, buckets: hb})
	return actual.(*Histogram)
}

// Render writes all metrics in Prometheus text format, sorted by name.
func (c *Collector) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP wabot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE wabot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "wabot_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

	var counters []*Counter
	c.counters.Range(func(_, value any) bool {
		counters = append(counters, value.(*Counter))
		return true
	})
	sort.Slice(counters, func(i, j int) bool {
		if counters[i].name != counters[j].name {
			return counters[i].name < counters[j].name
		}
		return counters[i].labels < counters[j].labels
	})
	helpWritten := make(map[string]bool)
	for _, ctr := range counters {
		if !helpWritten[ctr.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			helpWritten[ctr.name] = true
		}
		if ctr.labels != "" {
			fmt.Fprintf(&sb, "%s{%s} %d\n", ctr.name, ctr.labels, ctr.Value())
		} else {
			fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
		}
	}

	c.histograms.Range(func(_, value any) bool {
		h := value.(*Histogram)
		h.mu.Lock()
		defer h.mu.Unlock()

		fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
		fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
		prefix := h.name + "_bucket{"
		if h.labels != "" {
			prefix += h.labels + ","
		}
		for _, b := range h.buckets {
			le := fmt.Sprintf("%g", b.le)
			if math.IsInf(b.le, 1) {
				le = "+Inf"
			}
			fmt.Fprintf(&sb, "%sle=\"%s\"} %d\n", prefix, le, b.count)
		}
		if h.labels != "" {
			fmt.Fprintf(&sb, "%s_count{%s} %d\n", h.name, h.labels, h.count)
			fmt.Fprintf(&sb, "%s_sum{%s} %f\n", h.name, h.labels, h.sum)
		} else {
			fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
			fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
		}
		return true
	})

	return sb.String()
}

// Handler serves Render as text/plain.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	}
}

// CommandCounter returns the per-command dispatch counter.
func (c *Collector) CommandCounter(command string) *Counter {
	return c.Counter("wabot_commands_total", "Commands dispatched, by command", fmt.Sprintf("command=%q", command))
}

var (
	WebhookBatches  = Default.Counter("wabot_webhook_batches_total", "Webhook requests received", "")
	MessagesTotal   = Default.Counter("wabot_messages_total", "Inbound messages seen", "")
	MessagesSkipped = Default.Counter("wabot_messages_skipped_total", "Inbound messages skipped as own echoes", "")
	APIErrors       = Default.Counter("wabot_api_errors_total", "Outbound gateway calls that failed", "")
	PanicsRecovered = Default.Counter("wabot_panics_recovered_total", "Panics recovered while handling requests", "")

	APILatency = Default.Histogram("wabot_api_latency_seconds", "Outbound gateway call latency in seconds", "",
		[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30})
)
