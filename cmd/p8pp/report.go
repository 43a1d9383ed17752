package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"github.com/picoboots/p8pp/internal/build"
	"github.com/picoboots/p8pp/internal/variant"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

type styles struct {
	plain, bold, warn, faint lipgloss.Style
}

// newStyles colours output for terminals only; pipes and files get plain
// text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	if !isTerminal(w) {
		plain := r.NewStyle()
		return styles{plain: plain, bold: plain, warn: plain, faint: plain}
	}
	return styles{
		plain: r.NewStyle(),
		bold:  r.NewStyle().Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("11")),
		faint: r.NewStyle().Faint(true),
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func writeSummary(w io.Writer, rep build.Report) {
	st := newStyles(w)
	for _, f := range rep.Files {
		for _, a := range f.Anomalies {
			fmt.Fprintln(w, st.warn.Render("warning:"), a.String())
		}
		for _, m := range f.Missing {
			fmt.Fprintf(w, "%s %s:%d: no substitute for %s\n", st.warn.Render("error:"), f.Path, m.Line, m.Symbol)
		}
	}
	line := fmt.Sprintf("%s, %d → %d lines", plural(len(rep.Files), "file", "files"), rep.LinesIn(), rep.LinesOut())
	if n := rep.Anomalies(); n > 0 {
		line += ", " + st.warn.Render(plural(n, "anomaly", "anomalies"))
	}
	if n := rep.Missing(); n > 0 {
		line += ", " + st.warn.Render(plural(n, "missing substitute", "missing substitutes"))
	}
	fmt.Fprintln(w, st.bold.Render("processed")+" "+line)
}

func writeVariants(w io.Writer, tbl *variant.Table) {
	st := newStyles(w)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.faint).
		Headers("VARIANT", "SYMBOLS", "STRIPS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.bold.Padding(0, 1)
			}
			return st.plain.Padding(0, 1)
		})
	for _, name := range tbl.Names() {
		v, err := tbl.Lookup(name)
		if err != nil {
			continue
		}
		strips := strings.Join(v.Stripped(), ", ")
		if strips == "" {
			strips = "-"
		}
		t.Row(name, strings.Join(v.Symbols(), ", "), strips)
	}
	fmt.Fprintln(w, t.Render())
}
