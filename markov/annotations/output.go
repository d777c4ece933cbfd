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
	// ShowCacheTraffic includes per-key cache hits and misses, which are
	// too chatty for normal verbose output
	ShowCacheTraffic bool
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f) && !color.NoColor
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
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
	case StoreOpened:
		return fmt.Sprintf("%s %s Opened %v store at %v (order %v)",
			latency,
			f.colorize("===", color.FgGreen),
			event.Data["backend"],
			event.Data["path"],
			event.Data["order"])

	case ModelSynced:
		return fmt.Sprintf("%s Synced model to store", latency)

	case ModelClosed:
		return fmt.Sprintf("%s %s Closed model", latency, f.colorize("===", color.FgGreen))

	case LearnSequence:
		return fmt.Sprintf("%s Learned %s in %s, %s rewritten",
			latency,
			f.colorizeCount("tokens", intData(event, "tokens.count")),
			f.colorizeCount("windows", intData(event, "windows.count")),
			f.colorizeCount("roots", intData(event, "roots.written")))

	case LearnRejected:
		return fmt.Sprintf("%s %s Skipped sequence of %d tokens (order %d)",
			latency,
			f.colorize("⚠️", color.FgYellow),
			intData(event, "tokens.count"),
			intData(event, "order"))

	case GenerateSeeded:
		return fmt.Sprintf("%s Seeded %v from %s: %v",
			latency,
			event.Data["direction"],
			f.colorize(quoteWord(event.Data["word"]), color.FgCyan),
			event.Data["window"])

	case GenerateExpanded:
		return fmt.Sprintf("%s Expanded %v by %s",
			latency,
			event.Data["direction"],
			f.colorizeCount("words", intData(event, "words.count")))

	case GenerateCompleted:
		return fmt.Sprintf("%s %s Generated %s (%v)",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("words", intData(event, "words.count")),
			event.Data["mode"])

	case GenerateFailed:
		return fmt.Sprintf("%s %s Generation failed (%v): %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["mode"],
			event.Data["error"])

	case CacheEvicted:
		return fmt.Sprintf("%s Evicted %s, wrote back %s, %s resident",
			latency,
			f.colorizeCount("keys", intData(event, "evicted.count")),
			f.colorizeCount("dirty", intData(event, "written.count")),
			f.colorizeCount("keys", intData(event, "size")))

	case CacheFlushed:
		return fmt.Sprintf("%s Flushed %s",
			latency,
			f.colorizeCount("dirty", intData(event, "written.count")))

	case CacheWriteErr:
		return fmt.Sprintf("%s %s Write-back of %d keys failed: %v",
			latency,
			f.colorize("✗", color.FgRed),
			intData(event, "count"),
			event.Data["error"])

	case CacheHit, CacheMiss:
		if !f.ShowCacheTraffic {
			return ""
		}
		return fmt.Sprintf("%s %s %q", latency, event.Name, event.Data["key"])

	default:
		// Generic format for unknown events
		if len(event.Data) == 0 {
			return fmt.Sprintf("%s %s", latency, event.Name)
		}
		var parts []string
		for k, v := range event.Data {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		return fmt.Sprintf("%s %s: %s", latency, event.Name, strings.Join(parts, ", "))
	}
}

// formatLatency formats a duration with appropriate units and color.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	var s string
	switch {
	case d < time.Millisecond:
		s = fmt.Sprintf("[%6.1fµs]", float64(d.Nanoseconds())/1000)
	case d < time.Second:
		s = fmt.Sprintf("[%6.1fms]", float64(d.Nanoseconds())/1e6)
	default:
		s = fmt.Sprintf("[%6.2fs ]", d.Seconds())
	}

	if !f.useColor {
		return s
	}

	switch ms := d.Milliseconds(); {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch label {
	case "tokens", "words":
		return color.CyanString(text)
	case "windows", "roots":
		return color.MagentaString(text)
	case "dirty":
		return color.YellowString(text)
	case "keys":
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

func intData(event Event, key string) int {
	switch v := event.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func quoteWord(v interface{}) string {
	s, _ := v.(string)
	if s == "" {
		return "<start>"
	}
	return fmt.Sprintf("%q", s)
}

// ConsoleHandler creates a handler that prints formatted events to stderr.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}

// isTerminal reports whether f is a character device rather than a file or pipe.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
