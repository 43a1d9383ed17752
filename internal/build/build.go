// Package build runs the preprocessor over a source tree.
package build

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/picoboots/p8pp/internal/luacheck"
	"github.com/picoboots/p8pp/internal/preprocessor"
	"github.com/picoboots/p8pp/internal/substitute"
	"golang.org/x/sync/errgroup"
)

// Builder preprocesses every matching file under a root, then optionally
// substitutes and syntax-checks the result.
type Builder struct {
	// Pre is skipped when nil, for substitute-only or check-only runs.
	Pre *preprocessor.Preprocessor
	// Replacer is applied to the preprocessed text when non-nil.
	Replacer *substitute.Replacer
	// Check parses every output as Lua and fails the run on a syntax error.
	Check bool
	// Workers bounds concurrent files; <= 0 means GOMAXPROCS.
	Workers    int
	Extensions []string
	// OutDir mirrors the source tree. Empty rewrites files in place.
	OutDir string
	// DryRun processes files without writing anything.
	DryRun bool
	Logger *slog.Logger
}

// FileResult describes one processed file.
type FileResult struct {
	Path      string
	Out       string
	LinesIn   int
	LinesOut  int
	Anomalies []preprocessor.Anomaly
	Missing   []substitute.Missing
}

// Report is the outcome of a Run, files in walk order.
type Report struct {
	Files []FileResult
}

func (r Report) LinesIn() (n int) {
	for _, f := range r.Files {
		n += f.LinesIn
	}
	return n
}

func (r Report) LinesOut() (n int) {
	for _, f := range r.Files {
		n += f.LinesOut
	}
	return n
}

func (r Report) Anomalies() (n int) {
	for _, f := range r.Files {
		n += len(f.Anomalies)
	}
	return n
}

func (r Report) Missing() (n int) {
	for _, f := range r.Files {
		n += len(f.Missing)
	}
	return n
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Run processes root, a file or a directory. The first failing file cancels
// the files not yet started; files already written stay written.
func (b *Builder) Run(ctx context.Context, root string) (Report, error) {
	files, err := b.collect(root)
	if err != nil {
		return Report{}, err
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := b.file(f.src, f.dst)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	return Report{Files: results}, nil
}

type job struct {
	src, dst string
}

func (b *Builder) collect(root string) ([]job, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		dst := root
		if b.OutDir != "" {
			dst = filepath.Join(b.OutDir, filepath.Base(root))
		}
		return []job{{src: root, dst: dst}}, nil
	}

	var ignore []string
	if b.OutDir != "" {
		absOut, err := filepath.Abs(b.OutDir)
		if err != nil {
			return nil, err
		}
		ignore = []string{absOut}
	}
	var jobs []job
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || ignored(path, ignore)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !b.matches(path) {
			return nil
		}
		dst := path
		if b.OutDir != "" {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			dst = filepath.Join(b.OutDir, rel)
		}
		jobs = append(jobs, job{src: path, dst: dst})
		return nil
	})
	return jobs, err
}

func (b *Builder) matches(path string) bool {
	return hasExtension(path, b.Extensions)
}

func hasExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (b *Builder) file(src, dst string) (FileResult, error) {
	log := b.logger()
	res := FileResult{Path: src, Out: dst}

	// #nosec G304 -- paths come from walking the user's source tree.
	buf, err := os.ReadFile(src)
	if err != nil {
		return res, err
	}
	res.LinesIn = countLines(buf)

	text := string(buf)
	if b.Pre != nil {
		var anomalies preprocessor.Collector
		pre := b.Pre.WithSink(preprocessor.Tee(&anomalies, preprocessor.SlogSink{Logger: log}))
		var out bytes.Buffer
		if err := pre.Process(src, bytes.NewReader(buf), &out); err != nil {
			return res, err
		}
		res.Anomalies = anomalies.Anomalies()
		text = out.String()
	}
	if b.Replacer != nil {
		text, res.Missing = b.Replacer.Replace(text)
		for _, m := range res.Missing {
			log.Error("no substitute for symbol",
				slog.String("file", src),
				slog.Int("line", m.Line),
				slog.String("symbol", m.Symbol),
			)
		}
	}
	res.LinesOut = countLines([]byte(text))

	if b.Check {
		if err := luacheck.Check(src, text); err != nil {
			return res, err
		}
	}

	if b.DryRun {
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return res, err
	}
	if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
		return res, err
	}
	log.Debug("preprocessed",
		slog.String("file", src),
		slog.String("out", dst),
		slog.Int("lines_in", res.LinesIn),
		slog.Int("lines_out", res.LinesOut),
	)
	return res, nil
}

func countLines(b []byte) int {
	n := bytes.Count(b, []byte{'\n'})
	if len(b) > 0 && b[len(b)-1] != '\n' {
		n++
	}
	return n
}
