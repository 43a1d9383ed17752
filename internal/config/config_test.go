package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/picoboots/p8pp/internal/preprocessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{
		"assert", "cheat", "debug", "itest", "itest_light",
		"log", "pico8_utest", "profiler", "release", "visual_log",
	}, cfg.Variants.Names())
	assert.Equal(t, preprocessor.LuaSyntax, cfg.Syntax)
	assert.Equal(t, []string{".lua"}, cfg.Files.Extensions)
	assert.Equal(t, "##", cfg.Substitutes.GlyphPrefix)
	assert.Equal(t, "8", cfg.Substitutes.Symbols["colors"]["red"])
	assert.Equal(t, "2", cfg.Substitutes.Symbols["motion_states"]["airborne"])
	assert.Equal(t, "12", cfg.Substitutes.Symbols["command_types"]["expect"])
	assert.Len(t, cfg.Substitutes.Symbols, 13)
	assert.False(t, cfg.Check)

	release, err := cfg.Variants.Lookup("release")
	require.NoError(t, err)
	assert.Equal(t, []string{"pico8"}, release.Symbols())
	assert.Equal(t, []string{"assert", "err", "log", "warn"}, release.Stripped())

	for _, name := range cfg.Variants.Names() {
		v, err := cfg.Variants.Lookup(name)
		require.NoError(t, err)
		assert.Empty(t, v.Conflicts(), name)
	}
}

func TestParseOverlay(t *testing.T) {
	cfg, err := Parse([]byte(`
variants:
  release:
    symbols: [pico8, release_only]
    strip: [assert]
  demo:
    symbols: [pico8, demo]
files:
  extensions: [".lua", ".p8"]
  workers: 2
substitutes:
  args:
    stage_ver: "1.0"
logging:
  level: debug
check: true
`))
	require.NoError(t, err)

	assert.Contains(t, cfg.Variants.Names(), "debug")
	assert.Contains(t, cfg.Variants.Names(), "demo")
	release, err := cfg.Variants.Lookup("release")
	require.NoError(t, err)
	assert.True(t, release.Defines("release_only"))
	assert.False(t, release.Strips("log"))

	assert.Equal(t, []string{".lua", ".p8"}, cfg.Files.Extensions)
	assert.Equal(t, 2, cfg.Files.Workers)
	assert.Equal(t, "1.0", cfg.Substitutes.Args["stage_ver"])
	assert.Equal(t, "", cfg.Substitutes.Args["credits_ver"])
	assert.Equal(t, "⬇️", cfg.Substitutes.Glyphs["d"])
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Check)
	assert.Equal(t, preprocessor.LuaSyntax, cfg.Syntax)
}

func TestParseSyntaxOverride(t *testing.T) {
	cfg, err := Parse([]byte("syntax:\n  directive_prefix: \"//#\"\n  line_comment: \"//\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "//#", cfg.Syntax.DirectivePrefix)
	assert.Equal(t, "//", cfg.Syntax.LineComment)
	assert.Equal(t, "]]", cfg.Syntax.CommentClose)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Variants.Names(), cfg.Variants.Names())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unknown field", "colour: red\n", "colour"},
		{"empty marker", "syntax:\n  comment_open: \"\"\n", "comment_open"},
		{"no extensions", "files:\n  extensions: []\n", "extensions"},
		{"bad extension", "files:\n  extensions: [lua]\n", "must start with"},
		{"negative workers", "files:\n  workers: -1\n", "workers"},
		{"bad level", "logging:\n  level: loud\n", "loud"},
		{"bad variant", "variants:\n  bad-name: {}\n", "not an identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)

	_, err := Load(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := LoadIfExists(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Variants.Len())

	require.NoError(t, os.WriteFile(path, []byte("check: true\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Check)

	require.NoError(t, os.WriteFile(path, []byte("check: [\n"), 0o644))
	_, err = LoadIfExists(path)
	assert.ErrorContains(t, err, path)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
