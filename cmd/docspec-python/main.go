// Package main provides the docspec-python binary entry point.
// Docspec-python parses Python source into the docspec object model and
// emits one JSON module payload per line.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nrser/docspec"
	"github.com/nrser/docspec/config"
	"github.com/nrser/docspec/python"
)

const (
	Version   = "2.0.2"
	BuildTime = "dev"
	appName   = "docspec-python"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	modules    []string
	packages   []string
	searchPath []string
	excludes   []string
	dumpTree   bool
	watch      bool
	noImports  bool
	noPrivate  bool
}

func rootCmd() *cobra.Command {
	var (
		opts     options
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "docspec-python",
		Short: "Parse Python source into the docspec object model",
		Long: `Docspec-python parses Python modules and packages into the docspec JSON
object model, one module payload per line.

Modules are resolved against the search path, which defaults to the current
project: when a pyproject.toml declares a src/ layout (or a src/ directory
exists) that directory is searched, otherwise the working directory is. With
no -m or -p arguments, everything found on the search path is parsed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(logLevel)
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVarP(&opts.modules, "module", "m", nil, "Module to parse, by dotted name (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.packages, "package", "p", nil, "Package to parse with all submodules, by dotted name (repeatable)")
	cmd.Flags().StringArrayVar(&opts.searchPath, "search-path", nil, "Directory to resolve modules against (repeatable)")
	cmd.Flags().StringArrayVar(&opts.excludes, "exclude", nil, "Additional gitignore-style pattern to skip during discovery (repeatable)")
	cmd.Flags().BoolVar(&opts.dumpTree, "dump-tree", false, "Render member trees as text instead of JSON")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep running and re-emit modules as files change")
	cmd.Flags().BoolVar(&opts.noImports, "no-imports", false, "Do not emit indirection members for imports")
	cmd.Flags().BoolVar(&opts.noPrivate, "no-private", false, "Do not emit members with a leading underscore")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func configureLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.NewLoader(slog.Default()).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	searchPath := opts.searchPath
	if len(searchPath) == 0 {
		searchPath = cfg.Parse.SearchPath
	}
	if len(searchPath) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		searchPath = python.DefaultSearchPath(cwd)
	}

	excludes := append(append([]string{}, python.DefaultExcludePatterns...), cfg.Parse.Exclude...)
	excludes = append(excludes, opts.excludes...)

	parserOptions := python.ParserOptions{
		IncludePrivate: cfg.Parse.IncludePrivate && !opts.noPrivate,
		IncludeImports: cfg.Parse.IncludeImports && !opts.noImports,
	}

	slog.Debug("resolved search path",
		"search_path", strings.Join(searchPath, string(os.PathListSeparator)))

	if opts.watch {
		return runWatch(ctx, searchPath, excludes, parserOptions, opts.dumpTree, out)
	}

	loader := python.NewLoader(searchPath, excludes, parserOptions)
	modules, err := collectModules(ctx, loader, opts)
	if err != nil {
		return err
	}
	slog.Debug("parsed modules", "count", len(modules))

	return emit(modules, opts.dumpTree, out)
}

// collectModules parses the requested modules and packages, or everything on
// the search path when none were requested.
func collectModules(ctx context.Context, loader *python.Loader, opts options) ([]*docspec.Module, error) {
	if len(opts.modules) == 0 && len(opts.packages) == 0 {
		return loader.LoadAll(ctx)
	}

	var modules []*docspec.Module
	for _, name := range opts.modules {
		module, err := loader.RequireModule(ctx, name)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	for _, name := range opts.packages {
		pkg, err := loader.LoadPackage(ctx, name)
		if err != nil {
			return nil, err
		}
		modules = append(modules, pkg...)
	}
	return modules, nil
}

func emit(modules []*docspec.Module, dumpTree bool, out io.Writer) error {
	if dumpTree {
		for _, module := range modules {
			if err := docspec.DumpTree(out, module, describeMember); err != nil {
				return err
			}
		}
		return nil
	}
	return docspec.DumpModules(modules, out)
}

// describeMember labels tree-dump lines, rendering functions as their def
// signatures.
func describeMember(member docspec.Member) string {
	if fn, ok := member.(*docspec.Function); ok {
		return python.FormatFunction(fn)
	}
	return fmt.Sprintf("%s %s", member.Kind(), member.Base().Name)
}

// runWatch emits the initial parse, then re-emits modules as their files
// change, until interrupted.
func runWatch(ctx context.Context, searchPath, excludes []string, parserOptions python.ParserOptions, dumpTree bool, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := python.NewWatcher(python.WatcherConfig{
		SearchPath: searchPath,
		Excludes:   excludes,
		Options:    parserOptions,
		Logger:     slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	modules, err := watcher.ParseAll(ctx)
	if err != nil {
		return err
	}
	if err := emit(modules, dumpTree, out); err != nil {
		return err
	}

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped")
			return nil

		case event := <-watcher.Events():
			if event.Error != nil {
				slog.Warn("parse failed", "path", event.Path, "error", event.Error)
				continue
			}
			if event.Operation == python.OpDelete {
				slog.Info("module removed", "path", event.Path)
				continue
			}
			if err := emit([]*docspec.Module{event.Module}, dumpTree, out); err != nil {
				return err
			}
		}
	}
}
