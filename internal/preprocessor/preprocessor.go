package preprocessor

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ---------------- Preprocessor ----------------

// Variant is the build configuration a document is resolved against.
type Variant interface {
	// Defines reports whether symbol is defined, for #if and #ifn.
	Defines(symbol string) bool
	// Strips reports whether whole-line calls to name are removed.
	Strips(name string) bool
}

// Preprocessor resolves conditional directives, force-keep regions and block
// comments, and strips debug calls. It only holds configuration: every call
// to Lines or Process uses fresh state, so one value may serve many
// goroutines as long as Anomalies is safe for concurrent use.
type Preprocessor struct {
	Variant   Variant
	Syntax    Syntax
	Anomalies AnomalySink
}

func NewPreprocessor(v Variant) *Preprocessor {
	return &Preprocessor{
		Variant:   v,
		Syntax:    LuaSyntax,
		Anomalies: Discard,
	}
}

// WithSink returns a copy of p reporting to s.
func (p *Preprocessor) WithSink(s AnomalySink) *Preprocessor {
	cp := *p
	cp.Anomalies = s
	return &cp
}

// Lines preprocesses a document given as lines, with or without their line
// terminators. Every returned line ends with a single "\n".
func (p *Preprocessor) Lines(filename string, lines []string) []string {
	r := p.newRun(filename)
	for i, line := range lines {
		r.line(i+1, line)
	}
	return r.finish()
}

// Process preprocesses file content read from r and writes the kept lines
// to w.
func (p *Preprocessor) Process(filename string, r io.Reader, w io.Writer) error {
	lr := newLineReader(r)
	run := p.newRun(filename)
	for lineNo := 1; ; lineNo++ {
		line, ok, err := lr.next()
		if err != nil {
			return fmt.Errorf("%s:%d: %w", shortPath(filename), lineNo, err)
		}
		if !ok {
			break
		}
		run.line(lineNo, line)
	}
	bw := bufio.NewWriter(w)
	for _, line := range run.finish() {
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// region is the state of the toggle and comment trackers: whether the
// region is open, and the line that opened it.
type region struct {
	inside bool
	line   int
}

type run struct {
	p       *Preprocessor
	file    string
	cond    condStack
	toggle  region
	comment region
	out     []string
}

func (p *Preprocessor) newRun(filename string) *run {
	if p.Anomalies == nil {
		p = p.WithSink(Discard)
	}
	return &run{p: p, file: filename}
}

func (r *run) report(line int, kind AnomalyKind, format string, args ...any) {
	r.p.Anomalies.Report(Anomaly{
		File:    r.file,
		Line:    line,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *run) line(lineNo int, line string) {
	line = strings.TrimRight(line, "\r\n")
	syn := r.p.Syntax

	if d, ok := syn.parseDirective(line); ok {
		r.directive(lineNo, d)
		return
	}
	if !r.cond.Active() {
		return
	}

	if syn.isToggleOpen(line) {
		r.openToggle(lineNo, line)
		return
	}
	if syn.isToggleClose(line) && r.closeToggle(lineNo, line) {
		return
	}

	if r.toggle.inside {
		r.trackComment(lineNo, line)
		r.emit(line)
		return
	}
	if kept, ok := r.filterComment(lineNo, line); ok {
		r.emit(kept)
	}
}

func (r *run) finish() []string {
	if r.cond.Depth() != 0 {
		r.report(r.cond.UnclosedLine(), UnclosedIf,
			"file ended inside a %sif block; close it with %sendif", r.p.Syntax.DirectivePrefix, r.p.Syntax.DirectivePrefix)
	}
	if r.toggle.inside {
		r.report(r.toggle.line, UnclosedToggle,
			"file ended inside a %s block; close it with %s", r.p.Syntax.ToggleOpen, r.p.Syntax.ToggleClose)
	} else if r.comment.inside {
		r.report(r.comment.line, UnclosedComment,
			"file ended inside a block comment opened with %s", r.p.Syntax.CommentOpen)
	}
	out := r.out
	r.out = nil
	return out
}

// ---------------- Directives ----------------

func (r *run) directive(lineNo int, d directive) {
	switch d.kind {
	case dirIf, dirIfn:
		r.cond.Push(lineNo, func() bool {
			defined := r.p.Variant != nil && r.p.Variant.Defines(d.symbol)
			return defined != (d.kind == dirIfn)
		})
	case dirEndif:
		if _, ok := r.cond.Pop(); !ok {
			r.report(lineNo, UnmatchedEndif,
				"%sendif outside of any %sif block; ignored", r.p.Syntax.DirectivePrefix, r.p.Syntax.DirectivePrefix)
		}
	}
}

// ---------------- Toggle region ----------------

func (r *run) openToggle(lineNo int, line string) {
	if r.toggle.inside {
		r.report(lineNo, ToggleReopen,
			"%s inside a block already opened at line %d; ignored", r.p.Syntax.ToggleOpen, r.toggle.line)
		return
	}
	r.toggle = region{inside: true, line: lineNo}

	// The tag usually opens a host comment so that non-preprocessed runs
	// skip the block.
	if strings.Contains(line, r.p.Syntax.CommentOpen) {
		if r.comment.inside {
			r.report(lineNo, CommentReopen,
				"%s inside a block comment opened at line %d", r.p.Syntax.ToggleOpen, r.comment.line)
			return
		}
		r.comment = region{inside: true, line: lineNo}
	}
}

// closeToggle reports whether the line was consumed as a toggle close.
// Anything after the close tag is dropped along with it.
func (r *run) closeToggle(lineNo int, line string) bool {
	if !r.toggle.inside {
		r.report(lineNo, UnmatchedToggleClose,
			"%s outside of a %s block; kept as text", r.p.Syntax.ToggleClose, r.p.Syntax.ToggleOpen)
		return false
	}
	opened := r.toggle.line
	r.toggle = region{}

	if strings.Contains(line, r.p.Syntax.CommentClose) {
		if !r.comment.inside {
			r.report(lineNo, UnmatchedCommentClose,
				"%s closes a block comment that was already closed inside the block opened at line %d", r.p.Syntax.ToggleClose, opened)
		}
		r.comment = region{}
	}
	return true
}

// ---------------- Comments ----------------

// trackComment follows comment markers inside a toggle region without
// hiding anything.
func (r *run) trackComment(lineNo int, line string) {
	r.scanComment(lineNo, line, nil)
}

// filterComment drops the parts of line that lie inside block comments.
// It reports false when nothing is left.
func (r *run) filterComment(lineNo int, line string) (string, bool) {
	var kept []string
	r.scanComment(lineNo, line, func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	})
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}

// scanComment walks line segment by segment, updating the comment state and
// passing every segment outside a comment to keep when it is non-nil.
// A close marker outside a comment is code and stays in its segment.
func (r *run) scanComment(lineNo int, line string, keep func(string)) {
	syn := r.p.Syntax
	rest := line
	for {
		if r.comment.inside {
			end := strings.Index(rest, syn.CommentClose)
			if open := strings.Index(rest, syn.CommentOpen); open >= 0 && (end < 0 || open < end) {
				r.report(lineNo, CommentReopen,
					"%s inside a block comment opened at line %d; nesting is not supported", syn.CommentOpen, r.comment.line)
			}
			if end < 0 {
				return
			}
			r.comment = region{}
			rest = rest[end+len(syn.CommentClose):]
			continue
		}
		start := syn.blockCommentStart(rest)
		if start < 0 {
			if keep != nil {
				keep(rest)
			}
			return
		}
		if keep != nil {
			keep(rest[:start])
		}
		r.comment = region{inside: true, line: lineNo}
		rest = rest[start+len(syn.CommentOpen):]
	}
}

// ---------------- Line stripping ----------------

func (r *run) emit(line string) {
	if s := r.p.stripLine(line); s != "" {
		r.out = append(r.out, s+"\n")
	}
}

// stripLine removes a trailing comment and surrounding blanks, and empties
// the line when it is nothing but a stripped call.
func (p *Preprocessor) stripLine(line string) string {
	if i := p.Syntax.lineCommentIndex(line); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if p.soleStrippedCall(line) {
		return ""
	}
	return line
}

// soleStrippedCall reports whether trim is exactly name(args) for a name the
// variant strips. A call followed by anything else, even another call, is
// kept.
func (p *Preprocessor) soleStrippedCall(trim string) bool {
	name, rest, ok := splitIdentPrefix(trim)
	if !ok || p.Variant == nil || !p.Variant.Strips(name) {
		return false
	}
	end, ok := p.Syntax.scanParenEnd(rest)
	return ok && strings.TrimSpace(rest[end:]) == ""
}

// ---------------- Input ----------------

type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (lr *lineReader) next() (line string, ok bool, err error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, err
	}
	if len(s) == 0 && err == io.EOF {
		return "", false, nil
	}
	return strings.TrimSuffix(s, "\n"), true, nil
}

func shortPath(p string) string {
	// nicer errors
	if p == "" {
		return p
	}
	return filepath.Base(p)
}
