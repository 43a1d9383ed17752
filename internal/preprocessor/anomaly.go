package preprocessor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// AnomalyKind classifies malformed input that the preprocessor recovers from.
type AnomalyKind string

const (
	UnmatchedEndif        AnomalyKind = "unmatched-endif"
	UnclosedIf            AnomalyKind = "unclosed-if"
	ToggleReopen          AnomalyKind = "toggle-reopen"
	UnmatchedToggleClose  AnomalyKind = "unmatched-toggle-close"
	UnclosedToggle        AnomalyKind = "unclosed-toggle"
	CommentReopen         AnomalyKind = "comment-reopen"
	UnmatchedCommentClose AnomalyKind = "unmatched-comment-close"
	UnclosedComment       AnomalyKind = "unclosed-comment"
)

// Anomaly is a warning about the input. It never changes the output.
type Anomaly struct {
	File    string
	Line    int
	Kind    AnomalyKind
	Message string
}

func (a Anomaly) String() string {
	if a.File == "" {
		return fmt.Sprintf("%d: %s", a.Line, a.Message)
	}
	return fmt.Sprintf("%s:%d: %s", shortPath(a.File), a.Line, a.Message)
}

// AnomalySink receives anomalies as they are found. Implementations must be
// safe for concurrent use when a Preprocessor is shared between goroutines.
type AnomalySink interface {
	Report(a Anomaly)
}

// SinkFunc adapts a function to AnomalySink.
type SinkFunc func(a Anomaly)

func (f SinkFunc) Report(a Anomaly) { f(a) }

// Discard drops every anomaly.
var Discard AnomalySink = SinkFunc(func(Anomaly) {})

// SlogSink logs anomalies as warnings.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Report(a Anomaly) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.LogAttrs(context.Background(), slog.LevelWarn, a.Message,
		slog.String("file", a.File),
		slog.Int("line", a.Line),
		slog.String("kind", string(a.Kind)),
	)
}

// Collector keeps anomalies in arrival order.
type Collector struct {
	mu   sync.Mutex
	list []Anomaly
}

func (c *Collector) Report(a Anomaly) {
	c.mu.Lock()
	c.list = append(c.list, a)
	c.mu.Unlock()
}

// Anomalies returns a copy of everything reported so far.
func (c *Collector) Anomalies() []Anomaly {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Anomaly(nil), c.list...)
}

// Kinds is a shorthand for tests and summaries.
func (c *Collector) Kinds() []AnomalyKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]AnomalyKind, len(c.list))
	for i, a := range c.list {
		kinds[i] = a.Kind
	}
	return kinds
}

// Tee forwards every anomaly to each sink in order. Nil sinks are skipped.
func Tee(sinks ...AnomalySink) AnomalySink {
	return SinkFunc(func(a Anomaly) {
		for _, s := range sinks {
			if s != nil {
				s.Report(a)
			}
		}
	})
}
