// Package variant holds the table of build variants: which symbols each one
// defines for #if/#ifn and which debug calls it strips.
package variant

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownVariant is matched by every *UnknownVariantError.
var ErrUnknownVariant = errors.New("unknown variant")

type UnknownVariantError struct {
	Name  string
	Known []string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown variant %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownVariantError) Is(target error) bool { return target == ErrUnknownVariant }

// Variant is immutable once built and may be read from many goroutines.
type Variant struct {
	name    string
	symbols map[string]struct{}
	strip   map[string]struct{}
}

func New(name string, symbols, strip []string) *Variant {
	v := &Variant{
		name:    name,
		symbols: make(map[string]struct{}, len(symbols)),
		strip:   make(map[string]struct{}, len(strip)),
	}
	for _, s := range symbols {
		v.symbols[s] = struct{}{}
	}
	for _, s := range strip {
		v.strip[s] = struct{}{}
	}
	return v
}

func (v *Variant) Name() string { return v.name }

func (v *Variant) Defines(symbol string) bool {
	_, ok := v.symbols[symbol]
	return ok
}

func (v *Variant) Strips(name string) bool {
	_, ok := v.strip[name]
	return ok
}

// Symbols returns the defined symbols, sorted.
func (v *Variant) Symbols() []string { return sortedKeys(v.symbols) }

// Stripped returns the stripped call names, sorted.
func (v *Variant) Stripped() []string { return sortedKeys(v.strip) }

// Conflicts lists names that are both defined and stripped. Defining
// "assert" is meant to keep multi-line asserts, so stripping the one-line
// ones at the same time is almost always a table mistake.
func (v *Variant) Conflicts() []string {
	var out []string
	for s := range v.strip {
		if v.Defines(s) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ---------------- Table ----------------

// Table maps variant names to variants.
type Table struct {
	variants map[string]*Variant
}

type rawVariant struct {
	Symbols []string `yaml:"symbols"`
	Strip   []string `yaml:"strip"`
}

func NewTable(vs ...*Variant) *Table {
	t := &Table{variants: make(map[string]*Variant, len(vs))}
	for _, v := range vs {
		t.variants[v.name] = v
	}
	return t
}

// UnmarshalYAML decodes a mapping of name to {symbols, strip}.
func (t *Table) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: variants must be a mapping", value.Line)
	}
	t.variants = make(map[string]*Variant, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, body := value.Content[i], value.Content[i+1]
		var raw rawVariant
		if err := body.Decode(&raw); err != nil {
			return fmt.Errorf("variant %q: %w", key.Value, err)
		}
		if err := validate(key.Value, raw); err != nil {
			return fmt.Errorf("line %d: %w", key.Line, err)
		}
		t.variants[key.Value] = New(key.Value, raw.Symbols, raw.Strip)
	}
	return nil
}

// MarshalYAML writes the table back in the same shape it is read.
func (t *Table) MarshalYAML() (interface{}, error) {
	out := make(map[string]rawVariant, len(t.variants))
	for name, v := range t.variants {
		out[name] = rawVariant{Symbols: v.Symbols(), Strip: v.Stripped()}
	}
	return out, nil
}

func validate(name string, raw rawVariant) error {
	if !isIdent(name) {
		return fmt.Errorf("variant name %q is not an identifier", name)
	}
	for _, s := range raw.Symbols {
		if !isWord(s) {
			return fmt.Errorf("variant %q: symbol %q is not a word", name, s)
		}
	}
	for _, s := range raw.Strip {
		if !isIdent(s) {
			return fmt.Errorf("variant %q: stripped call %q is not an identifier", name, s)
		}
	}
	return nil
}

// Lookup resolves name or returns an *UnknownVariantError.
func (t *Table) Lookup(name string) (*Variant, error) {
	if t != nil {
		if v, ok := t.variants[name]; ok {
			return v, nil
		}
	}
	return nil, &UnknownVariantError{Name: name, Known: t.Names()}
}

// Names returns the variant names, sorted.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.variants))
	for name := range t.variants {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.variants)
}

// Merge returns a table with the variants of o replacing those of t with the
// same name.
func (t *Table) Merge(o *Table) *Table {
	m := NewTable()
	if t != nil {
		for k, v := range t.variants {
			m.variants[k] = v
		}
	}
	if o != nil {
		for k, v := range o.variants {
			m.variants[k] = v
		}
	}
	return m
}

// isWord matches the symbol token accepted after #if, [A-Za-z0-9_]+.
func isWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	return isWord(s) && !(s[0] >= '0' && s[0] <= '9')
}
