package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
	renderer *TableRenderer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f) && !color.NoColor
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
		renderer: NewTableRenderer(useColor),
	}
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case JoinInvoked:
		return fmt.Sprintf("%s %s %s join of %s and %s (%s order)",
			latency,
			f.colorize("===", color.FgYellow),
			stringData(event, "mode"),
			f.renderer.RenderTable(stringsData(event, "left.columns"), intData(event, "left.size")),
			f.renderer.RenderTable(stringsData(event, "right.columns"), intData(event, "right.size")),
			stringData(event, "order"))

	case JoinPlanned:
		return fmt.Sprintf("%s Planned %s, probing with %s side (%s hash, %s probe)",
			latency,
			f.colorizeCount("partitions", intData(event, "partitions")),
			stringData(event, "probe.side"),
			f.colorizeCount("rows", intData(event, "hash.size")),
			f.colorizeCount("rows", intData(event, "probe.size")))

	case PhaseBegin:
		return fmt.Sprintf("%s %s %s starting",
			latency,
			f.colorize("===", color.FgYellow),
			stringData(event, "phase"))

	case PhaseComplete:
		if success, ok := event.Data["success"].(bool); ok && !success {
			return fmt.Sprintf("%s %s %s failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				stringData(event, "phase"),
				event.Data["error"])
		}
		return fmt.Sprintf("%s %s completed with %s",
			latency,
			stringData(event, "phase"),
			f.colorizeCount("rows", intData(event, "rows")))

	case PartitionSpilled:
		return fmt.Sprintf("%s %s partition %d of %s side to disk (%s held in memory)",
			latency,
			f.colorize("Spilled", color.FgMagenta),
			intData(event, "partition"),
			stringData(event, "side"),
			f.colorizeCount("rows", intData(event, "rows")))

	case PartitionReconciled:
		return fmt.Sprintf("%s Reconciled partition %d: %s × %s → %s",
			latency,
			intData(event, "partition"),
			f.colorizeCount("hash rows", intData(event, "hash.rows")),
			f.colorizeCount("probe rows", intData(event, "probe.rows")),
			f.colorizeCount("matches", intData(event, "matches")))

	case BlockJoin:
		return fmt.Sprintf("%s Block join over %d blocks: %s × %s → %s",
			latency,
			intData(event, "blocks"),
			f.colorizeCount("hash rows", intData(event, "hash.rows")),
			f.colorizeCount("probe rows", intData(event, "probe.rows")),
			f.colorizeCount("matches", intData(event, "matches")))

	case OutputMaterialized:
		return fmt.Sprintf("%s Materialized %s as %s",
			latency,
			stringData(event, "output"),
			f.renderer.RenderTable(stringsData(event, "columns"), intData(event, "rows")))

	case JoinComplete:
		if success, ok := event.Data["success"].(bool); ok && !success {
			return fmt.Sprintf("%s %s Join failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				event.Data["error"])
		}
		return fmt.Sprintf("%s %s Join done with %s, %s left and %s right unmatched (%s probed in memory, %s from disk)",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("matches", intData(event, "matches")),
			f.colorizeCount("rows", intData(event, "left.unmatched")),
			f.colorizeCount("rows", intData(event, "right.unmatched")),
			f.colorizeCount("rows", intData(event, "probe.memory")),
			f.colorizeCount("rows", intData(event, "probe.disk")))

	case ErrorCanceled, ErrorSpill, ErrorSettings:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Name,
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int64) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch {
	case strings.HasSuffix(label, "partitions"):
		return color.CyanString(text)
	case strings.HasSuffix(label, "rows"):
		return color.MagentaString(text)
	case label == "matches":
		return color.BlueString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

func stringData(e Event, key string) string {
	switch v := e.Data[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return "?"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func stringsData(e Event, key string) []string {
	if v, ok := e.Data[key].([]string); ok {
		return v
	}
	return nil
}

func intData(e Event, key string) int64 {
	switch v := e.Data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		return 0
	}
}

// ConsoleHandler creates a handler that prints formatted events to stderr.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}

// isTerminal checks whether f is attached to a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
