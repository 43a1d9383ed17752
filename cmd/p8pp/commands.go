package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/picoboots/p8pp/internal/build"
	"github.com/picoboots/p8pp/internal/luacheck"
	"github.com/picoboots/p8pp/internal/preprocessor"
	"github.com/picoboots/p8pp/internal/substitute"
	"github.com/spf13/cobra"
)

type buildOptions struct {
	out        string
	workers    int
	check      bool
	replace    bool
	substitute []string
}

func (o *buildOptions) addFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&o.out, "out", "o", "", "output directory (default: rewrite files in place)")
	fs.IntVarP(&o.workers, "workers", "j", 0, "files processed in parallel (default from config, 0 = one per CPU)")
	fs.BoolVar(&o.check, "check", false, "parse the output as Lua and fail on syntax errors")
	fs.BoolVar(&o.replace, "replace", false, "apply glyph, symbol and arg substitutes after preprocessing")
	fs.StringArrayVarP(&o.substitute, "substitute", "s", nil, "arg substitute name=value (implies --replace)")
}

// newPreprocessor resolves the variant and applies the configured syntax.
func (a *app) newPreprocessor(variantName string) (*preprocessor.Preprocessor, error) {
	v, err := a.cfg.Variants.Lookup(variantName)
	if err != nil {
		return nil, err
	}
	if c := v.Conflicts(); len(c) > 0 {
		a.log.Warn("variant both defines and strips symbols",
			slog.String("variant", v.Name()),
			slog.String("symbols", strings.Join(c, ",")))
	}
	p := preprocessor.NewPreprocessor(v)
	p.Syntax = a.cfg.Syntax
	p.Anomalies = preprocessor.SlogSink{Logger: a.log}
	return p, nil
}

func (a *app) replacer(o *buildOptions) (*substitute.Replacer, error) {
	if !o.replace && len(o.substitute) == 0 {
		return nil, nil
	}
	args, err := substitute.ParseArgs(o.substitute)
	if err != nil {
		return nil, err
	}
	return substitute.New(a.cfg.Substitutes, args)
}

func (a *app) builder(cmd *cobra.Command, o *buildOptions) (*build.Builder, error) {
	r, err := a.replacer(o)
	if err != nil {
		return nil, err
	}
	workers := a.cfg.Files.Workers
	if cmd.Flags().Changed("workers") {
		workers = o.workers
	}
	return &build.Builder{
		Replacer:   r,
		Check:      o.check || a.cfg.Check,
		Workers:    workers,
		Extensions: a.cfg.Files.Extensions,
		OutDir:     o.out,
		Logger:     a.log,
	}, nil
}

func newPreprocessCmd(a *app) *cobra.Command {
	var o buildOptions
	cmd := &cobra.Command{
		Use:   "preprocess VARIANT [PATH]",
		Short: "Resolve directives, strip debug calls and comments for a build variant",
		Long: `Preprocess every source file under PATH (a file or a directory) for VARIANT.
Without PATH, or with "-", the source is read from stdin and written to stdout.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pre, err := a.newPreprocessor(args[0])
			if err != nil {
				return err
			}
			b, err := a.builder(cmd, &o)
			if err != nil {
				return err
			}
			b.Pre = pre

			if len(args) < 2 || args[1] == "-" {
				return a.pipe(cmd, b)
			}
			rep, err := b.Run(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	o.addFlags(cmd)
	return cmd
}

// pipe runs b's steps over stdin and writes the result to stdout.
func (a *app) pipe(cmd *cobra.Command, b *build.Builder) error {
	var out bytes.Buffer
	if err := b.Pre.Process("<stdin>", cmd.InOrStdin(), &out); err != nil {
		return err
	}
	text := out.String()
	if b.Replacer != nil {
		var missing []substitute.Missing
		text, missing = b.Replacer.Replace(text)
		for _, m := range missing {
			a.log.Error("no substitute for symbol", slog.Int("line", m.Line), slog.String("symbol", m.Symbol))
		}
	}
	if b.Check {
		if err := luacheck.Check("<stdin>", text); err != nil {
			return err
		}
	}
	_, err := cmd.OutOrStdout().Write([]byte(text))
	return err
}

func newSubstituteCmd(a *app) *cobra.Command {
	var o buildOptions
	cmd := &cobra.Command{
		Use:   "substitute PATH",
		Short: "Replace glyph identifiers, namespaced symbols and $args without preprocessing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.replace = true
			b, err := a.builder(cmd, &o)
			if err != nil {
				return err
			}
			rep, err := b.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	o.addFlags(cmd)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		o        buildOptions
		debounce = build.DefaultDebounce
	)
	cmd := &cobra.Command{
		Use:   "watch VARIANT SRC",
		Short: "Preprocess SRC into --out and again on every change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.out == "" {
				return errors.New("watch needs --out; sources are never rewritten in place")
			}
			pre, err := a.newPreprocessor(args[0])
			if err != nil {
				return err
			}
			b, err := a.builder(cmd, &o)
			if err != nil {
				return err
			}
			b.Pre = pre

			rebuild := func(ctx context.Context) error {
				rep, err := b.Run(ctx, args[1])
				if err != nil {
					return err
				}
				a.log.Info("rebuilt",
					slog.Int("files", len(rep.Files)),
					slog.Int("lines_out", rep.LinesOut()),
					slog.Int("anomalies", rep.Anomalies()))
				return nil
			}
			if err := rebuild(cmd.Context()); err != nil {
				return err
			}
			return build.Watch(cmd.Context(), build.WatchConfig{
				Root:       args[1],
				Extensions: a.cfg.Files.Extensions,
				Ignore:     []string{o.out},
				Debounce:   debounce,
				Logger:     a.log,
			}, rebuild)
		},
	}
	o.addFlags(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", build.DefaultDebounce, "quiet period before a rebuild")
	return cmd
}

func newVariantsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the build variants with their symbols and stripped calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			writeVariants(cmd.OutOrStdout(), a.cfg.Variants)
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	var variantName string
	cmd := &cobra.Command{
		Use:   "check PATH",
		Short: "Check that sources parse as Lua, optionally after preprocessing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &build.Builder{
				Check:      true,
				DryRun:     true,
				Workers:    a.cfg.Files.Workers,
				Extensions: a.cfg.Files.Extensions,
				Logger:     a.log,
			}
			if variantName != "" {
				pre, err := a.newPreprocessor(variantName)
				if err != nil {
					return err
				}
				b.Pre = pre
			}
			rep, err := b.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&variantName, "variant", "", "preprocess for this variant before checking")
	return cmd
}
