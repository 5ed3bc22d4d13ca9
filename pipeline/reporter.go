package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/pixelflow/metric"
	"github.com/c360/pixelflow/pkg/buffer"
)

// LogReporter writes samples as structured log records. Samples go out at
// debug level, resolutions at info.
type LogReporter struct {
	Logger *slog.Logger
}

// NewLogReporter creates a LogReporter. A nil logger uses slog.Default.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{Logger: logger.With("component", "observer")}
}

// Report logs occupancy and the per-slot states.
func (r *LogReporter) Report(snap buffer.Snapshot) {
	states := make([]string, len(snap.Slots))
	for i, s := range snap.Slots {
		states[i] = s.State.String()
	}
	r.Logger.Debug("queue sample",
		"size", snap.Size,
		"capacity", snap.Capacity,
		"head", snap.Head,
		"tail", snap.Tail,
		"slots", states)
}

// Resolved logs a processed item.
func (r *LogReporter) Resolved(item buffer.SlotView) {
	r.Logger.Info("item processed",
		"item", item.Name,
		"producer", item.ProducerID,
		"item_id", item.ItemID.String())
}

// ConsoleReporter prints one styled line per sample:
//
//	queue  3/10 [P P R . . . . . . .]
//
// P is pending, R is present but resolved, . is empty. Colors are only
// emitted when w is a terminal.
type ConsoleReporter struct {
	mu  sync.Mutex
	w   io.Writer
	buf strings.Builder

	label    lipgloss.Style
	pending  lipgloss.Style
	resolved lipgloss.Style
	empty    lipgloss.Style
	done     lipgloss.Style
}

// NewConsoleReporter creates a ConsoleReporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	re := lipgloss.NewRenderer(w)
	return &ConsoleReporter{
		w:        w,
		label:    re.NewStyle().Bold(true),
		pending:  re.NewStyle().Foreground(lipgloss.Color("11")),
		resolved: re.NewStyle().Foreground(lipgloss.Color("10")),
		empty:    re.NewStyle().Faint(true),
		done:     re.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// Report prints the sample line.
func (r *ConsoleReporter) Report(snap buffer.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf.Reset()
	r.buf.WriteString(r.label.Render("queue"))
	fmt.Fprintf(&r.buf, " %2d/%d [", snap.Size, snap.Capacity)
	for i, s := range snap.Slots {
		if i > 0 {
			r.buf.WriteByte(' ')
		}
		switch s.State {
		case buffer.SlotPending:
			r.buf.WriteString(r.pending.Render("P"))
		case buffer.SlotResolved:
			r.buf.WriteString(r.resolved.Render("R"))
		default:
			r.buf.WriteString(r.empty.Render("."))
		}
	}
	r.buf.WriteString("]\n")
	_, _ = io.WriteString(r.w, r.buf.String())
}

// Resolved prints a processed line.
func (r *ConsoleReporter) Resolved(item buffer.SlotView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s (producer %d)\n", r.done.Render("processed"), item.Name, item.ProducerID)
}

// MetricsReporter exports occupancy as Prometheus gauges.
type MetricsReporter struct {
	pending  prometheus.Gauge
	resolved prometheus.Gauge
	observed prometheus.Counter
}

// NewMetricsReporter registers the observer gauges with registry.
func NewMetricsReporter(registry *metric.MetricsRegistry) (*MetricsReporter, error) {
	r := &MetricsReporter{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "observer",
			Name:      "pending_slots",
			Help:      "Occupied slots whose future is unresolved at the last sample",
		}),
		resolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "observer",
			Name:      "resolved_slots",
			Help:      "Occupied slots whose future is resolved at the last sample",
		}),
		observed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "observer",
			Name:      "resolutions_observed_total",
			Help:      "Items seen pending and later seen resolved",
		}),
	}

	if err := registry.RegisterGauge("observer", "pending_slots", r.pending); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("observer", "resolved_slots", r.resolved); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("observer", "resolutions_observed", r.observed); err != nil {
		return nil, err
	}
	return r, nil
}

// Report sets the occupancy gauges.
func (r *MetricsReporter) Report(snap buffer.Snapshot) {
	var pending, resolved int
	for _, s := range snap.Slots {
		switch s.State {
		case buffer.SlotPending:
			pending++
		case buffer.SlotResolved:
			resolved++
		}
	}
	r.pending.Set(float64(pending))
	r.resolved.Set(float64(resolved))
}

// Resolved counts an observed resolution.
func (r *MetricsReporter) Resolved(buffer.SlotView) {
	r.observed.Inc()
}

// MultiReporter fans out to several reporters in order.
type MultiReporter []Reporter

// Report forwards to every reporter.
func (m MultiReporter) Report(snap buffer.Snapshot) {
	for _, r := range m {
		r.Report(snap)
	}
}

// Resolved forwards to every reporter.
func (m MultiReporter) Resolved(item buffer.SlotView) {
	for _, r := range m {
		r.Resolved(item)
	}
}
