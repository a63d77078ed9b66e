package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/texdeck/internal/adapters/secondary/deckfile"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/viewer"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/watcher"
	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// buildCmd renders a deck file without starting the service
var buildCmd = &cobra.Command{
	Use:   "build [deck-file]",
	Short: "Generate a deck from a YAML, JSON or Markdown file",
	Long: `Generate a deck from a descriptor file and write it to disk.

YAML and JSON files carry the same fields as the HTTP request body.
Markdown files use optional frontmatter for the template and "---"
separated slides whose first heading becomes the title.

Example:
  texdeck build lecture.yaml
  texdeck build notes.md -o notes.pdf --format pdf
  texdeck build --sample --open
  texdeck build lecture.md --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("output", "o", "", "Output path (default: deck name with the format extension)")
	buildCmd.Flags().StringP("format", "f", "pptx", "Output format: pptx or pdf")
	buildCmd.Flags().Bool("sample", false, "Build the built-in sample deck")
	buildCmd.Flags().BoolP("watch", "w", false, "Rebuild whenever the deck or its config changes")
	buildCmd.Flags().Bool("open", false, "Open the generated deck with the system viewer")
	addGenerationFlags(buildCmd)
}

var (
	newWatcher = func() ports.FileWatcher {
		return watcher.NewNotifyWatcher(300*time.Millisecond, slog.Default())
	}
	newOpener = func() ports.DocumentOpener { return viewer.NewOpener() }
)

// validateBuildArgs checks that exactly one deck source was given
func validateBuildArgs(args []string, sample bool) error {
	switch {
	case sample && len(args) > 0:
		return errors.New("--sample cannot be combined with a deck file")
	case !sample && len(args) != 1:
		return errors.New("a deck file is required (or use --sample)")
	}
	return nil
}

// outputPath derives the destination when -o is not given
func outputPath(explicit string, args []string, format entities.OutputFormat, fallback string) string {
	if explicit != "" {
		return explicit
	}

	base := fallback
	if len(args) == 1 {
		base = filepath.Base(args[0])
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + format.Extension()
}

func runBuild(cmd *cobra.Command, args []string) error {
	sample, _ := cmd.Flags().GetBool("sample")
	if err := validateBuildArgs(args, sample); err != nil {
		return err
	}

	watch, _ := cmd.Flags().GetBool("watch")
	if watch && sample {
		return errors.New("--watch needs a deck file")
	}

	formatName, _ := cmd.Flags().GetString("format")
	format, err := entities.ParseOutputFormat(formatName)
	if err != nil {
		return err
	}

	dest, err := buildOnce(cmd, args, format)
	if err != nil {
		return err
	}

	if open, _ := cmd.Flags().GetBool("open"); open {
		if err := newOpener().Open(dest); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open %s: %v\n", dest, err)
		}
	}

	if !watch {
		return nil
	}
	return watchAndRebuild(cmd, args, format)
}

// buildOnce loads configuration and the deck, generates it and writes the
// output. It returns the written path.
func buildOnce(cmd *cobra.Command, args []string, format entities.OutputFormat) (string, error) {
	finalConfig, err := loadAndValidateConfig(cmd)
	if err != nil {
		return "", err
	}

	logger := newLoggerWithLevel(resolveVerbose(cmd, finalConfig), finalConfig.Logging.GetLevel())

	var deck *entities.DeckRequest
	if len(args) == 0 {
		deck, err = deckfile.Sample()
	} else {
		deck, err = deckfile.Load(args[0])
	}
	if err != nil {
		return "", err
	}

	decks := buildDeckService(finalConfig, newServiceLogger(finalConfig)).decks

	progress := func(event ports.ProgressEvent) {
		if event.Type == ports.ProgressSlideDone {
			logger.Info("Slide %d/%d done", event.Slide+1, event.Total)
		}
	}

	generated, err := decks.Generate(cmd.Context(), deck, format, progress)
	if err != nil {
		return "", fmt.Errorf("generating deck: %w", err)
	}

	for _, failure := range generated.Failures {
		logger.Warn("%v", failure)
	}

	explicit, _ := cmd.Flags().GetString("output")
	dest := outputPath(explicit, args, format, finalConfig.Generation.GetOutputFilename())

	// #nosec G306 - generated decks are meant to be shared
	if err := os.WriteFile(dest, generated.Data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d slides (%d formulas) to %s\n", generated.Slides, generated.Formulas, dest)
	return dest, nil
}

// watchPaths lists the deck plus the config file that would apply to it
func watchPaths(cmd *cobra.Command, deckPath string) []string {
	if explicit, _ := cmd.Flags().GetString("config"); explicit != "" {
		return []string{deckPath, explicit}
	}
	if wd, err := os.Getwd(); err == nil {
		return []string{deckPath, filepath.Join(wd, "texdeck.toml")}
	}
	return []string{deckPath}
}

// watchAndRebuild rebuilds on every change until the command context ends.
// Failed rebuilds are reported and watching continues.
func watchAndRebuild(cmd *cobra.Command, args []string, format entities.OutputFormat) error {
	ctx := cmd.Context()
	w := newWatcher()
	defer func() { _ = w.Stop() }()

	events, err := w.Watch(ctx, watchPaths(cmd, args[0])...)
	if err != nil {
		return fmt.Errorf("watching %s: %w", args[0], err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)\n", args[0])

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Type == ports.Deleted && event.Path == mustAbs(args[0]) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s was deleted, waiting for it to return\n", args[0])
				continue
			}
			if _, err := buildOnce(cmd, args, format); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Rebuild failed: %v\n", err)
			}
		}
	}
}

func mustAbs(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
