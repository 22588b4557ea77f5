package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// frameInterval is how often the progress line redraws.
const frameInterval = 100 * time.Millisecond

var frames = []string{"⣷", "⣯", "⣟", "⡿", "⢿", "⣻", "⣽", "⣾"}

// Console writes styled messages and a single redrawn progress line.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	quiet    bool
	progress *progressLine

	bold   *color.Color
	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
}

// progressLine is the state of an active progress line.
type progressLine struct {
	message string
	frame   int
	stop    chan struct{}
}

// New creates a Console on stderr. A quiet console only prints errors.
func New(quiet bool) *Console {
	return NewWithWriter(os.Stderr, quiet)
}

// NewWithWriter creates a Console writing to w.
func NewWithWriter(w io.Writer, quiet bool) *Console {
	return &Console{
		out:    w,
		quiet:  quiet,
		bold:   color.New(color.Bold),
		cyan:   color.New(color.FgCyan),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
	}
}

// Strong renders s in bold.
func (c *Console) Strong(s string) string { return c.bold.Sprint(s) }

// Accent renders s highlighted.
func (c *Console) Accent(s string) string { return c.cyan.Sprint(s) }

// Info prints a plain message.
func (c *Console) Info(format string, a ...any) {
	c.line(false, nil, "", format, a...)
}

// Success prints a green message marked with a check.
func (c *Console) Success(format string, a ...any) {
	c.line(false, c.green, "✓ ", format, a...)
}

// Warn prints a yellow warning.
func (c *Console) Warn(format string, a ...any) {
	c.line(false, c.yellow, "! ", format, a...)
}

// Error prints a red error, also on a quiet console.
func (c *Console) Error(format string, a ...any) {
	c.line(true, c.red, "✗ ", format, a...)
}

// Field prints an aligned "label: value" line.
func (c *Console) Field(label string, value any) {
	c.line(false, nil, "  ", "%s %v", c.bold.Sprintf("%-22s", label+":"), value)
}

// line clears any progress line and prints one message.
func (c *Console) line(always bool, col *color.Color, prefix, format string, a ...any) {
	if c.quiet && !always {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearProgress()
	msg := prefix + fmt.Sprintf(format, a...) + "\n"
	if col == nil {
		_, _ = io.WriteString(c.out, msg)
		return
	}
	_, _ = col.Fprint(c.out, msg)
}

// StartProgress shows a spinner followed by message until StopProgress or the next message.
func (c *Console) StartProgress(message string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearProgress()

	p := &progressLine{message: message, stop: make(chan struct{})}
	c.progress = p
	go c.animate(p)
}

// animate redraws p until it is stopped.
func (c *Console) animate(p *progressLine) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		c.mu.Lock()
		if c.progress != p {
			c.mu.Unlock()
			return
		}
		fmt.Fprintf(c.out, "\r\033[K%s %s", c.green.Sprint(frames[p.frame]), p.message)
		p.frame = (p.frame + 1) % len(frames)
		c.mu.Unlock()

		select {
		case <-ticker.C:
		case <-p.stop:
			return
		}
	}
}

// UpdateProgress replaces the message of the active progress line.
func (c *Console) UpdateProgress(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress != nil {
		c.progress.message = message
	}
}

// ProgressFunc returns a callback showing "prefix current/total: message" on the progress line.
func (c *Console) ProgressFunc(prefix string) func(current, total int, message string) {
	return func(current, total int, message string) {
		c.UpdateProgress(fmt.Sprintf("%s %d/%d: %s", prefix, current, total, message))
	}
}

// StopProgress clears the progress line.
func (c *Console) StopProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearProgress()
}

// clearProgress must be called with mu held.
func (c *Console) clearProgress() {
	if c.progress == nil {
		return
	}
	close(c.progress.stop)
	c.progress = nil
	fmt.Fprint(c.out, "\r\033[K")
}
