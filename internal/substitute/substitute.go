// Package substitute replaces glyph identifiers, namespaced symbols and
// $args in source text.
package substitute

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type Config struct {
	// GlyphPrefix + key is replaced by Glyphs[key], e.g. "##x".
	GlyphPrefix string            `yaml:"glyph_prefix"`
	Glyphs      map[string]string `yaml:"glyphs"`
	// Symbols maps namespace -> member -> substitute for "namespace.member".
	Symbols map[string]map[string]string `yaml:"symbols"`
	// ArgPrefix + name is replaced by Args[name], e.g. "$stage_ver".
	ArgPrefix string            `yaml:"arg_prefix"`
	Args      map[string]string `yaml:"args"`
}

// Missing is a namespaced symbol with no substitute.
type Missing struct {
	Symbol string
	Line   int
}

type symbolRule struct {
	namespace string
	members   map[string]string
	re        *regexp.Regexp
}

// Replacer applies a Config. It is immutable and safe for concurrent use.
type Replacer struct {
	glyphs  *strings.Replacer
	symbols []symbolRule
	args    *strings.Replacer
}

// New builds a Replacer. args override cfg.Args.
func New(cfg Config, args map[string]string) (*Replacer, error) {
	r := &Replacer{}

	if len(cfg.Glyphs) > 0 {
		if cfg.GlyphPrefix == "" {
			return nil, fmt.Errorf("substitutes: glyph_prefix must not be empty")
		}
		var pairs []string
		for _, k := range sortedByLengthDesc(cfg.Glyphs) {
			pairs = append(pairs, cfg.GlyphPrefix+k, cfg.Glyphs[k])
		}
		r.glyphs = strings.NewReplacer(pairs...)
	}

	namespaces := make([]string, 0, len(cfg.Symbols))
	for ns := range cfg.Symbols {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(ns) + `\.\w+`)
		if err != nil {
			return nil, fmt.Errorf("substitutes: namespace %q: %w", ns, err)
		}
		r.symbols = append(r.symbols, symbolRule{namespace: ns, members: cfg.Symbols[ns], re: re})
	}

	merged := make(map[string]string, len(cfg.Args)+len(args))
	for k, v := range cfg.Args {
		merged[k] = v
	}
	for k, v := range args {
		merged[k] = v
	}
	if len(merged) > 0 {
		if cfg.ArgPrefix == "" {
			return nil, fmt.Errorf("substitutes: arg_prefix must not be empty")
		}
		var pairs []string
		for _, k := range sortedByLengthDesc(merged) {
			pairs = append(pairs, cfg.ArgPrefix+k, merged[k])
		}
		r.args = strings.NewReplacer(pairs...)
	}
	return r, nil
}

// Replace applies glyphs, then symbols, then args. A member missing from a
// known namespace is replaced by a failing assert so that the mistake shows
// at runtime, and reported in missing.
func (r *Replacer) Replace(text string) (out string, missing []Missing) {
	if r.glyphs != nil {
		text = r.glyphs.Replace(text)
	}
	for _, rule := range r.symbols {
		text = replaceSymbols(text, rule, &missing)
	}
	if r.args != nil {
		text = r.args.Replace(text)
	}
	return text, missing
}

func replaceSymbols(text string, rule symbolRule, missing *[]Missing) string {
	locs := rule.re.FindAllStringIndex(text, -1)
	if locs == nil {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		symbol := text[loc[0]:loc[1]]
		member := symbol[len(rule.namespace)+1:]
		if sub, ok := rule.members[member]; ok {
			b.WriteString(sub)
		} else {
			*missing = append(*missing, Missing{
				Symbol: symbol,
				Line:   1 + strings.Count(text[:loc[0]], "\n"),
			})
			fmt.Fprintf(&b, `assert(false, "UNSUBSTITUTED %s")`, symbol)
		}
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// ParseArgs parses "name=value" definitions.
func ParseArgs(defs []string) (map[string]string, error) {
	out := make(map[string]string, len(defs))
	for _, def := range defs {
		parts := strings.Split(def, "=")
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("substitute %q: want exactly one '=' in name=value", def)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

func sortedByLengthDesc(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
