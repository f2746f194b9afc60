package logging

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// MaxLineLength is the maximum length of a relayed line before truncation.
const MaxLineLength = 4096

// LineReader is the consumable side of a merged stream: anything with a
// blocking ReadLine that reports end-of-data with ok=false.
type LineReader interface {
	ReadLine() (line string, ok bool)
}

// Relay forwards a child process's output lines to the logger in the
// background, once a launcher has decided the process is healthy. The relay
// goroutine terminates when its source closes, which the owning process's
// termination guarantees.
type Relay struct {
	name   string
	logger *slog.Logger
}

// NewRelay creates a relay tagged with the child's name (e.g. "xvfb :73").
func NewRelay(name string, logger *slog.Logger) *Relay {
	return &Relay{name: name, logger: logger}
}

// Go starts relaying lines from r in a background goroutine.
func (rl *Relay) Go(r io.Reader) {
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, MaxLineLength), MaxLineLength)
		for scanner.Scan() {
			rl.handleLine(scanner.Text())
		}
	}()
}

// GoLines starts relaying the remainder of an already-merged stream.
func (rl *Relay) GoLines(lr LineReader) {
	go func() {
		for {
			line, ok := lr.ReadLine()
			if !ok {
				return
			}
			rl.handleLine(line)
		}
	}()
}

func (rl *Relay) handleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}
	rl.logger.Log(nil, classifyLine(line), "child_output",
		"child", rl.name,
		"line", line,
	)
}

// classifyLine picks a log level from line content. Server chatter is debug;
// anything that smells like a failure is surfaced at warn.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "error") ||
		strings.Contains(lower, "exception") ||
		strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "failed") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}
