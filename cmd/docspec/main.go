// Package main provides the docspec binary entry point.
// Docspec reads, validates and renders API documentation payloads in the
// docspec object model.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nrser/docspec"
)

const (
	Version   = "2.0.2"
	BuildTime = "dev"
	appName   = "docspec"
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

func rootCmd() *cobra.Command {
	var (
		multiple bool
		dumpTree bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "docspec [files...]",
		Short: "Validate and render API documentation payloads",
		Long: `Docspec reads API documentation payloads in the docspec JSON object
model, validates them and re-emits them in normalized form.

With no file arguments the payload is read from stdin. With --multiple the
input is a stream of payloads, one JSON object per line, as produced by
parsers such as docspec-python. With --dump-tree the member tree is rendered
as indented text instead of JSON.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(logLevel)
			return run(args, multiple, dumpTree, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&multiple, "multiple", false, "Treat input as a stream of module payloads, one per line")
	cmd.Flags().BoolVar(&dumpTree, "dump-tree", false, "Render the member tree as text instead of JSON")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

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

func run(files []string, multiple, dumpTree bool, out io.Writer) error {
	modules, err := loadInput(files, multiple)
	if err != nil {
		return err
	}

	for _, module := range modules {
		if err := module.Validate(); err != nil {
			return fmt.Errorf("invalid module %q: %w", module.Name, err)
		}
	}
	slog.Debug("loaded modules", "count", len(modules))

	if dumpTree {
		for _, module := range modules {
			if err := docspec.DumpTree(out, module, nil); err != nil {
				return err
			}
		}
		return nil
	}

	return docspec.DumpModules(modules, out)
}

// loadInput reads module payloads from the given files, or stdin when none
// are given.
func loadInput(files []string, multiple bool) ([]*docspec.Module, error) {
	if len(files) == 0 {
		return loadReader(os.Stdin, "stdin", multiple)
	}

	var modules []*docspec.Module
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file, err)
		}
		loaded, err := loadReader(f, file, multiple)
		f.Close()
		if err != nil {
			return nil, err
		}
		modules = append(modules, loaded...)
	}
	return modules, nil
}

func loadReader(r io.Reader, name string, multiple bool) ([]*docspec.Module, error) {
	if multiple {
		modules, err := docspec.LoadModules(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return modules, nil
	}

	module, err := docspec.LoadModule(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return []*docspec.Module{module}, nil
}
