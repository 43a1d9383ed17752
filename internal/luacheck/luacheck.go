// Package luacheck verifies that preprocessed output still parses as Lua 5.1.
// PICO-8 extensions (compound assignment, "!=", one-line "if (c) x") are not
// Lua 5.1 and fail the check, so it is opt-in.
package luacheck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/gopher-lua/parse"
)

// SyntaxError is a parse failure at a position of the checked text.
type SyntaxError struct {
	File    string
	Line    int
	Column  int
	Near    string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Line <= 0 {
		return fmt.Sprintf("%s: at end of file: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: near %q: %s", e.File, e.Line, e.Column, e.Near, e.Message)
}

// Check parses src and returns a *SyntaxError when it is not valid Lua.
func Check(name, src string) error {
	_, err := parse.Parse(strings.NewReader(src), name)
	if err == nil {
		return nil
	}
	var perr *parse.Error
	if errors.As(err, &perr) {
		line := perr.Pos.Line
		if line == parse.EOF {
			line = 0
		}
		return &SyntaxError{
			File:    name,
			Line:    line,
			Column:  perr.Pos.Column,
			Near:    perr.Token,
			Message: perr.Message,
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
