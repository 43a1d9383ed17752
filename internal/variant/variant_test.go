package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const tableYAML = `
debug:
  symbols: [pico8, assert, log]
release:
  symbols: [pico8]
  strip: [assert, log, warn, err]
`

func TestVariant(t *testing.T) {
	v := New("itest_light", []string{"pico8", "log", "test"}, []string{"assert"})
	assert.Equal(t, "itest_light", v.Name())
	assert.True(t, v.Defines("log"))
	assert.False(t, v.Defines("assert"))
	assert.True(t, v.Strips("assert"))
	assert.False(t, v.Strips("log"))
	assert.Equal(t, []string{"log", "pico8", "test"}, v.Symbols())
	assert.Equal(t, []string{"assert"}, v.Stripped())
	assert.Empty(t, v.Conflicts())
}

func TestConflicts(t *testing.T) {
	v := New("odd", []string{"assert", "log"}, []string{"log", "assert", "warn"})
	assert.Equal(t, []string{"assert", "log"}, v.Conflicts())
}

func TestTableYAML(t *testing.T) {
	var tbl Table
	require.NoError(t, yaml.Unmarshal([]byte(tableYAML), &tbl))

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"debug", "release"}, tbl.Names())

	rel, err := tbl.Lookup("release")
	require.NoError(t, err)
	assert.True(t, rel.Defines("pico8"))
	assert.True(t, rel.Strips("warn"))

	out, err := yaml.Marshal(&tbl)
	require.NoError(t, err)
	var again Table
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, tbl.Names(), again.Names())
}

func TestTableYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"not a mapping", "- debug\n", "must be a mapping"},
		{"bad name", "1st:\n  symbols: [a]\n", "not an identifier"},
		{"bad symbol", "debug:\n  symbols: [a-b]\n", "not a word"},
		{"bad strip", "debug:\n  strip: [9lives]\n", "stripped call"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tbl Table
			err := yaml.Unmarshal([]byte(tt.in), &tbl)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	tbl := NewTable(New("debug", nil, nil), New("release", nil, []string{"log"}))

	_, err := tbl.Lookup("nightly")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownVariant))

	var uerr *UnknownVariantError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "nightly", uerr.Name)
	assert.Equal(t, []string{"debug", "release"}, uerr.Known)
	assert.Contains(t, err.Error(), "debug, release")
}

func TestNilTable(t *testing.T) {
	var tbl *Table
	assert.Zero(t, tbl.Len())
	assert.Nil(t, tbl.Names())
	_, err := tbl.Lookup("debug")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestMerge(t *testing.T) {
	base := NewTable(New("debug", []string{"log"}, nil), New("release", nil, []string{"log"}))
	over := NewTable(New("release", []string{"pico8"}, nil), New("cheat", []string{"cheat"}, nil))

	m := base.Merge(over)
	assert.Equal(t, []string{"cheat", "debug", "release"}, m.Names())

	rel, err := m.Lookup("release")
	require.NoError(t, err)
	assert.True(t, rel.Defines("pico8"))
	assert.False(t, rel.Strips("log"))

	// inputs are untouched
	assert.Equal(t, 2, base.Len())
	assert.Equal(t, 2, over.Len())
}
