package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
)

var levelColors = map[slog.Level]struct{ color, label string }{
	slog.LevelDebug: {Gray, "DEBUG"},
	slog.LevelInfo:  {Green, "INFO "},
	slog.LevelWarn:  {Yellow, "WARN "},
	slog.LevelError: {Red, "ERROR"},
}

// ColorHandler is a slog.Handler producing one colorized line per record:
//
//	2024-01-02T15:04:05Z [INFO ] starting data upgrade table="article" upgrade="fix-bad-statuses"
type ColorHandler struct {
	opts     *slog.HandlerOptions
	mu       *sync.Mutex
	writer   io.Writer
	attrs    []slog.Attr
	group    string
	masker   *Masker
	useColor bool
}

// NewColorHandler creates a color handler; colors are only emitted on a terminal
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{
		opts:     opts,
		mu:       &sync.Mutex{},
		writer:   w,
		masker:   NewMasker(),
		useColor: isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	if runtime.GOOS == "windows" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

// Handle writes the record
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(h.paint(Gray, r.Time.Format(time.RFC3339)))
		b.WriteByte(' ')
	}

	lc, ok := levelColors[r.Level]
	if !ok {
		lc.color, lc.label = Magenta, r.Level.String()
	}
	b.WriteString(h.paint(lc.color, "["+lc.label+"]"))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	write := func(prefix string, a slog.Attr) {
		a = h.masker.MaskAttr(a)
		b.WriteByte(' ')
		b.WriteString(h.paint(Cyan, prefix+a.Key))
		b.WriteByte('=')
		b.WriteString(h.value(a.Value))
	}
	for _, a := range h.attrs {
		write("", a)
	}
	prefix := ""
	if h.group != "" {
		prefix = h.group + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		write(prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *ColorHandler) value(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := fmt.Sprintf("%q", v.String())
		if looksLikeFailure(v.String()) {
			return h.paint(Red, s)
		}
		return s
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.paint(Magenta, v.String())
	case slog.KindBool:
		if v.Bool() {
			return h.paint(Green, "true")
		}
		return h.paint(Red, "false")
	case slog.KindDuration:
		return h.paint(Yellow, v.Duration().String())
	case slog.KindTime:
		return h.paint(Gray, v.Time().Format(time.RFC3339))
	}
	if err, ok := v.Any().(error); ok {
		return h.paint(Red, fmt.Sprintf("%q", err.Error()))
	}
	return v.String()
}

func looksLikeFailure(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "error") || strings.Contains(s, "fail")
}

func (h *ColorHandler) paint(color, text string) string {
	if !h.useColor {
		return text
	}
	return color + text + Reset
}

func (h *ColorHandler) clone() *ColorHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

// WithAttrs returns a handler that always writes attrs
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

// WithGroup returns a handler that prefixes attribute keys with name
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	if c.group != "" {
		c.group += "."
	}
	c.group += name
	return c
}

// SetMasker replaces the handler's masker
func (h *ColorHandler) SetMasker(m *Masker) {
	h.masker = m
}

// SetColorEnabled forces colors on or off
func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.useColor = enabled
}
