// Command tally catalogs filesystem subtrees into deterministic,
// content-addressed record trees.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	tally "github.com/tallyfs/tally"
	core "github.com/tallyfs/tally/core"
)

// Version is the current version of the tally tool.
const Version = "2.0.0"

// Exit codes: 0 clean, 1 fatal, 2 completed with skipped items. The
// distinction lets scripts tell a truncated catalog from a dead run.
const exitSkipped = 2

// errSomeSkipped marks a run that finished but dropped items.
var errSomeSkipped = errors.New("completed with skipped items")

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if errors.Is(err, errSomeSkipped) {
			os.Exit(exitSkipped)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type indexFlags struct {
	configFile     string
	output         string
	recursive      bool
	inPlace        bool
	sidecars       bool
	metadata       bool
	deleteAbsorbed bool
	sha512         bool
	logLevel       string
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tally",
		Short:         "Catalog filesystem subtrees into deterministic record trees",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newIndexCommand())
	return root
}

func newIndexCommand() *cobra.Command {
	flags := &indexFlags{}
	cmd := &cobra.Command{
		Use:   "index [targets...]",
		Short: "Index one or more files or directories",
		Long: `Index catalogs each target into a record tree. Independent targets
are indexed concurrently; the engine itself stays single-threaded per
target, so identities, sidecar absorption, and progress stay
deterministic.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.configFile, "config", "", "config file (default: ./tally.yaml, $HOME/.config/tally/tally.yaml)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "manifest output path (single target) or directory (multiple targets)")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", true, "descend into subdirectories")
	cmd.Flags().BoolVar(&flags.inPlace, "in-place", false, "write a per-item artifact next to each item")
	cmd.Flags().BoolVar(&flags.sidecars, "sidecars", false, "discover and absorb sidecar files")
	cmd.Flags().BoolVar(&flags.metadata, "metadata", false, "extract embedded metadata via exiftool")
	cmd.Flags().BoolVar(&flags.deleteAbsorbed, "delete-absorbed", false, "delete absorbed sidecars after a fully clean run")
	cmd.Flags().BoolVar(&flags.sha512, "sha512", false, "additionally compute the sha512 digest")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}

// resolveConfig layers configuration sources: flags over environment
// (TALLY_*) over config file over engine defaults.
func resolveConfig(flags *indexFlags) (*core.Config, error) {
	v := viper.New()
	if flags.configFile != "" {
		v.SetConfigFile(flags.configFile)
	} else {
		v.SetConfigName("tally")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tally"))
		}
	}
	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := core.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if flags.sha512 {
		cfg.EnableSHA512 = true
	}
	if flags.sidecars {
		cfg.Sidecars.Enabled = true
	}
	if flags.metadata {
		cfg.Metadata.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func runIndex(ctx context.Context, flags *indexFlags, targets []string) error {
	cfg, err := resolveConfig(flags)
	if err != nil {
		return err
	}
	logger := newLogger(flags.logLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mu      sync.Mutex
		total   core.Stats
		skipped bool
	)

	// The config is immutable and safely shared; each target gets its
	// own delete queue and its own engine invocation.
	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			queue := &core.DeleteQueue{}
			opts := []core.IndexOption{
				core.IndexWithLogger(logger),
				core.IndexWithDeleteQueue(queue),
			}
			if !flags.recursive {
				opts = append(opts, core.IndexShallow())
			}
			if flags.inPlace {
				opts = append(opts, core.IndexInPlace())
			}

			entry, stats, err := tally.IndexPath(gctx, target, cfg, opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}

			if out := outputPath(flags, targets, target); out != "" {
				if err := core.WriteManifest(out, entry); err != nil {
					return fmt.Errorf("%s: %w", target, err)
				}
			}
			if flags.deleteAbsorbed && stats.Skipped == 0 {
				drainDeleteQueue(queue, logger)
			}

			mu.Lock()
			defer mu.Unlock()
			total.Indexed += stats.Indexed
			total.Skipped += stats.Skipped
			total.Sidecars += stats.Sidecars
			total.Generated += stats.Generated
			total.Bytes += stats.Bytes
			skipped = skipped || stats.Skipped > 0
			printSummary(target, entry, stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(targets) > 1 {
		fmt.Printf("total: %d items, %s\n", total.Indexed, humanize.Bytes(total.Bytes))
	}
	if skipped {
		color.Yellow("warning: %d item(s) skipped", total.Skipped)
		return errSomeSkipped
	}
	return nil
}

// outputPath decides where a target's manifest goes. Empty means no
// manifest is written (in-place mode may still write artifacts).
func outputPath(flags *indexFlags, targets []string, target string) string {
	switch {
	case flags.output == "" && flags.inPlace:
		return ""
	case flags.output == "":
		return filepath.Base(target) + core.FileArtifactSuffix
	case len(targets) == 1:
		return flags.output
	default:
		return filepath.Join(flags.output, filepath.Base(target)+core.FileArtifactSuffix)
	}
}

// drainDeleteQueue removes absorbed sidecars. Runs only after a fully
// clean pass; a failed removal is reported and the rest proceed.
func drainDeleteQueue(queue *core.DeleteQueue, logger *slog.Logger) {
	for _, p := range queue.Paths() {
		if err := os.Remove(p); err != nil {
			logger.Warn("absorbed sidecar not removed", "path", p, "error", err)
		}
	}
}

func printSummary(target string, entry *tally.CatalogEntry, stats core.Stats) {
	bold := color.New(color.Bold)
	bold.Printf("%s\n", target)
	fmt.Printf("  id:       %s\n", entry.ID)
	fmt.Printf("  items:    %d\n", stats.Indexed)
	fmt.Printf("  size:     %s\n", humanize.Bytes(stats.Bytes))
	if stats.Sidecars > 0 {
		fmt.Printf("  sidecars: %d absorbed\n", stats.Sidecars)
	}
	if stats.Generated > 0 {
		fmt.Printf("  metadata: %d generated\n", stats.Generated)
	}
	if stats.Skipped > 0 {
		color.Yellow("  skipped:  %d", stats.Skipped)
	}
}
