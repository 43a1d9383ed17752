// Package p8pp preprocesses PICO-8 Lua sources for a build variant: it
// resolves --#if/--#ifn/--#endif blocks, keeps --[[#pico8 ... --#pico8]]
// regions, drops block and line comments and strips whole-line debug calls.
package p8pp

import (
	"sync"

	"github.com/picoboots/p8pp/internal/config"
	"github.com/picoboots/p8pp/internal/preprocessor"
	"github.com/picoboots/p8pp/internal/variant"
)

// ErrUnknownVariant is matched by the error of an unknown variant name.
var ErrUnknownVariant = variant.ErrUnknownVariant

var defaultVariants = sync.OnceValue(func() *variant.Table {
	return config.Default().Variants
})

// Variants returns the built-in variant names.
func Variants() []string {
	return defaultVariants().Names()
}

// Preprocess resolves lines for one of the built-in variants. Anomalies are
// dropped; use PreprocessWith to see them.
func Preprocess(lines []string, variantName string) ([]string, error) {
	return PreprocessWith(lines, defaultVariants(), variantName, nil)
}

// PreprocessWith resolves lines against a variant of table, reporting
// anomalies to sink when it is non-nil. Every returned line ends with "\n".
func PreprocessWith(lines []string, table *variant.Table, variantName string, sink preprocessor.AnomalySink) ([]string, error) {
	v, err := table.Lookup(variantName)
	if err != nil {
		return nil, err
	}
	p := preprocessor.NewPreprocessor(v)
	if sink != nil {
		p = p.WithSink(sink)
	}
	return p.Lines("", lines), nil
}
