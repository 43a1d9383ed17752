package preprocessor

import (
	"fmt"
	"strings"
)

// Syntax holds the textual markers the preprocessor recognises.
type Syntax struct {
	// DirectivePrefix introduces #if, #ifn and #endif at column 0.
	DirectivePrefix string `yaml:"directive_prefix"`
	// ToggleOpen and ToggleClose delimit the force-keep region, column 0 only.
	ToggleOpen  string `yaml:"toggle_open"`
	ToggleClose string `yaml:"toggle_close"`
	// CommentOpen and CommentClose delimit block comments anywhere on a line.
	CommentOpen  string `yaml:"comment_open"`
	CommentClose string `yaml:"comment_close"`
	LineComment  string `yaml:"line_comment"`
	// Quotes lists the string delimiter bytes.
	Quotes string `yaml:"quotes"`
}

// LuaSyntax is the marker set used by PICO-8 Lua sources.
var LuaSyntax = Syntax{
	DirectivePrefix: "--#",
	ToggleOpen:      "--[[#pico8",
	ToggleClose:     "--#pico8]]",
	CommentOpen:     "--[[",
	CommentClose:    "]]",
	LineComment:     "--",
	Quotes:          `"'`,
}

// Validate reports the first empty marker.
func (s Syntax) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"directive_prefix", s.DirectivePrefix},
		{"toggle_open", s.ToggleOpen},
		{"toggle_close", s.ToggleClose},
		{"comment_open", s.CommentOpen},
		{"comment_close", s.CommentClose},
		{"line_comment", s.LineComment},
		{"quotes", s.Quotes},
	} {
		if f.value == "" {
			return fmt.Errorf("syntax: %s must not be empty", f.name)
		}
	}
	return nil
}

type directiveKind int

const (
	dirIf directiveKind = iota + 1
	dirIfn
	dirEndif
)

type directive struct {
	kind   directiveKind
	symbol string
}

// parseDirective recognises "<prefix>if NAME", "<prefix>ifn NAME" and
// "<prefix>endif". Anything after NAME is ignored.
func (s Syntax) parseDirective(line string) (directive, bool) {
	if !strings.HasPrefix(line, s.DirectivePrefix) {
		return directive{}, false
	}
	cmd, rest, ok := splitIdentPrefix(line[len(s.DirectivePrefix):])
	if !ok {
		return directive{}, false
	}
	switch cmd {
	case "endif":
		return directive{kind: dirEndif}, true
	case "if", "ifn":
		if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
			return directive{}, false
		}
		rest = trimLeftSpaceTab(rest)
		i := 0
		for i < len(rest) && isIdentPart(rest[i]) {
			i++
		}
		if i == 0 {
			return directive{}, false
		}
		d := directive{kind: dirIf, symbol: rest[:i]}
		if cmd == "ifn" {
			d.kind = dirIfn
		}
		return d, true
	}
	return directive{}, false
}

func (s Syntax) isToggleOpen(line string) bool  { return strings.HasPrefix(line, s.ToggleOpen) }
func (s Syntax) isToggleClose(line string) bool { return strings.HasPrefix(line, s.ToggleClose) }

// scanCode calls fn with every offset of line that lies outside a string
// literal and returns the first offset for which fn reports true, or -1.
// A backslash escapes the next byte inside a string; an unterminated string
// runs to the end of the line.
func (s Syntax) scanCode(line string, fn func(i int) bool) int {
	var quote byte
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		if strings.IndexByte(s.Quotes, ch) >= 0 {
			quote = ch
			continue
		}
		if fn(i) {
			return i
		}
	}
	return -1
}

// lineCommentIndex returns the offset of the first comment start outside
// string literals. Block comment openers count, since they begin with the
// line comment token in Lua.
func (s Syntax) lineCommentIndex(line string) int {
	return s.scanCode(line, func(i int) bool {
		return strings.HasPrefix(line[i:], s.LineComment) || strings.HasPrefix(line[i:], s.CommentOpen)
	})
}

// blockCommentStart returns the offset of the block comment opener that
// starts the first comment outside string literals. A line comment that
// starts first hides any opener after it.
func (s Syntax) blockCommentStart(line string) int {
	found := false
	i := s.scanCode(line, func(i int) bool {
		if strings.HasPrefix(line[i:], s.CommentOpen) {
			found = true
			return true
		}
		return strings.HasPrefix(line[i:], s.LineComment)
	})
	if !found {
		return -1
	}
	return i
}

// scanParenEnd returns the offset just past the parenthesis closing the one
// at s[0], skipping over string literals.
func (s Syntax) scanParenEnd(text string) (int, bool) {
	if text == "" || text[0] != '(' {
		return 0, false
	}
	depth := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '(' {
			depth++
		} else if ch == ')' {
			depth--
			if depth == 0 {
				return i + 1, true
			}
		} else if strings.IndexByte(s.Quotes, ch) >= 0 {
			quote := ch
			i++
			for i < len(text) {
				ch = text[i]
				if ch == '\\' {
					i++
					if i < len(text) {
						i++
					}
					continue
				}
				if ch == quote {
					break
				}
				i++
			}
		}
	}
	return 0, false
}

func splitIdentPrefix(s string) (name string, rest string, ok bool) {
	if s == "" || !isIdentStart(s[0]) {
		return "", "", false
	}
	i := 1
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	return s[:i], s[i:], true
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func trimLeftSpaceTab(s string) string {
	return strings.TrimLeft(s, " \t")
}
