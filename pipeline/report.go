package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/pkg/buffer"
	"github.com/c360/pixelflow/pkg/worker"
)

// Report formats accepted by Report.Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report aggregates one run after every task has joined.
type Report struct {
	RunID    string        `json:"run_id" yaml:"run_id"`
	Started  time.Time     `json:"started" yaml:"started"`
	Elapsed  time.Duration `json:"elapsed_ns" yaml:"elapsed"`
	Capacity int           `json:"capacity" yaml:"capacity"`

	Producers []TaskMetrics `json:"producers" yaml:"producers"`
	Consumers []TaskMetrics `json:"consumers" yaml:"consumers"`

	Loaded    int `json:"loaded" yaml:"loaded"`
	Processed int `json:"processed" yaml:"processed"`
	Failed    int `json:"failed" yaml:"failed"`

	Queue  buffer.StatsSummary `json:"queue" yaml:"queue"`
	Groups []worker.GroupStats `json:"groups" yaml:"groups"`
	Errors []string            `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (r *Report) tally() {
	r.Loaded, r.Processed, r.Failed = 0, 0, 0
	for _, p := range r.Producers {
		r.Loaded += p.Items
		r.Failed += p.Failures
	}
	for _, c := range r.Consumers {
		r.Processed += c.Items
		r.Failed += c.Failures
	}
}

// Write renders the report in format: text, json or yaml.
func (r *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return r.WriteText(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Report", "Write", "unknown format "+format)
	}
}

// WriteText renders the human-readable summary.
func (r *Report) WriteText(w io.Writer) error {
	re := lipgloss.NewRenderer(w)
	title := re.NewStyle().Bold(true).Underline(true)
	heading := re.NewStyle().Bold(true)
	muted := re.NewStyle().Faint(true)
	bad := re.NewStyle().Foreground(lipgloss.Color("9"))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", title.Render("Pipeline report"))
	fmt.Fprintf(&b, "run %s  total time %s  capacity %d\n", r.RunID, r.Elapsed.Round(time.Millisecond), r.Capacity)
	fmt.Fprintf(&b, "loaded %d  processed %d  failed %d\n", r.Loaded, r.Processed, r.Failed)

	fmt.Fprintf(&b, "\n%s\n", heading.Render("Producers"))
	for _, p := range r.Producers {
		fmt.Fprintf(&b, "  producer %d: images loaded %d, avg %s, total %s, finish rank %d\n",
			p.ID, p.Items, p.Average().Round(time.Microsecond), p.Total.Round(time.Microsecond), p.Rank)
		if p.Failures > 0 {
			fmt.Fprintf(&b, "    %s\n", bad.Render(fmt.Sprintf("%d failed to load", p.Failures)))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", heading.Render("Consumers"))
	for _, c := range r.Consumers {
		fmt.Fprintf(&b, "  consumer %d: images processed %d, avg %s, total %s, finish rank %d\n",
			c.ID, c.Items, c.Average().Round(time.Microsecond), c.Total.Round(time.Microsecond), c.Rank)
		if len(c.Operations) > 0 {
			fmt.Fprintf(&b, "    %s\n", muted.Render("operations: "+strings.Join(c.Operations, ", ")))
		}
		if c.Failures > 0 {
			fmt.Fprintf(&b, "    %s\n", bad.Render(fmt.Sprintf("%d failed to persist", c.Failures)))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", heading.Render("Queue"))
	fmt.Fprintf(&b, "  pushes %d  pops %d  max size %d  push waits %d  pop timeouts %d\n",
		r.Queue.Pushes, r.Queue.Pops, r.Queue.MaxSize, r.Queue.PushWaits, r.Queue.PopTimeouts)

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\n%s\n", heading.Render("Errors"))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s\n", bad.Render(e))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
