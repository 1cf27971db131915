// Package logging provides the colored slog console handler used for
// stderr logging, and the --colour policy. The console handler keeps one
// line per record so LSP client output panes stay readable.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColourMode controls ANSI colour emission.
type ColourMode string

const (
	ColourAuto   ColourMode = "auto"
	ColourAlways ColourMode = "always"
	ColourNever  ColourMode = "never"
)

// ParseColourMode validates a --colour flag value.
func ParseColourMode(s string) (ColourMode, error) {
	switch ColourMode(s) {
	case ColourAuto, ColourAlways, ColourNever:
		return ColourMode(s), nil
	}
	return "", fmt.Errorf("logging: invalid colour mode %q (want auto, always, or never)", s)
}

// Enabled resolves the mode against fd, probing for a terminal in auto
// mode.
func (m ColourMode) Enabled(fd uintptr) bool {
	switch m {
	case ColourAlways:
		return true
	case ColourNever:
		return false
	default:
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
}

// ConsoleHandler is a slog.Handler that renders compact single-line
// records, optionally colored.
type ConsoleHandler struct {
	opts    slog.HandlerOptions
	colored bool

	mu  *sync.Mutex
	w   io.Writer
	pre string // preformatted group/attr prefix
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler creates a handler writing to w. If opts is nil,
// defaults apply (LevelInfo).
func NewConsoleHandler(w io.Writer, colored bool, opts *slog.HandlerOptions) *ConsoleHandler {
	h := &ConsoleHandler{
		colored: colored,
		mu:      &sync.Mutex{},
		w:       w,
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled implements slog.Handler.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
	keyColor   = color.New(color.FgHiBlack)
)

func levelTag(level slog.Level) (string, *color.Color) {
	switch {
	case level >= slog.LevelError:
		return "ERR", errorColor
	case level >= slog.LevelWarn:
		return "WRN", warnColor
	case level >= slog.LevelInfo:
		return "INF", infoColor
	default:
		return "DBG", debugColor
	}
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	sb.WriteString(r.Time.Format(time.TimeOnly))
	sb.WriteByte(' ')

	tag, c := levelTag(r.Level)
	if h.colored {
		sb.WriteString(c.Sprint(tag))
	} else {
		sb.WriteString(tag)
	}
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	sb.WriteString(h.pre)

	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&sb, "", a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *ConsoleHandler) appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(sb, p, ga)
		}
		return
	}

	key := prefix + a.Key
	if h.colored {
		key = keyColor.Sprint(key)
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\"") {
		val = strconv.Quote(val)
	}
	fmt.Fprintf(sb, " %s=%s", key, val)
}

// WithAttrs implements slog.Handler.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var sb strings.Builder
	for _, a := range attrs {
		h.appendAttr(&sb, "", a)
	}
	h2 := *h
	h2.pre = h.pre + sb.String()
	return &h2
}

// WithGroup implements slog.Handler. It returns the handler unchanged:
// the group name is dropped and later attributes keep their plain keys.
// Group-valued attributes are still flattened into dotted keys.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	return h
}
