package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"epub2pdf/internal/converter"
	"epub2pdf/internal/summarize"
)

var rootCmd = &cobra.Command{
	Use:   "epub2pdf [flags] book.epub [book2.epub ...]",
	Short: "Convert EPUB files to paginated PDF documents",
	Long: `epub2pdf converts EPUB ebooks to paginated PDF documents, embedding a
TrueType font and scaling images to the page. It can optionally produce
an AI-generated summary of the extracted text.

Files are converted one at a time; a failed file is reported and the
rest of the batch proceeds.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringP("output", "o", "", "Output directory (default: next to each input)")
	rootCmd.Flags().String("font", "", "Path to a local TrueType font to embed")
	rootCmd.Flags().StringSlice("font-url", nil, "Remote font URLs, tried in order (default: DejaVu Sans mirrors)")
	rootCmd.Flags().Bool("summarize", false, "Produce an AI summary JSON next to each PDF")
	rootCmd.Flags().String("model", "", "Summarization model (default: provider default)")
	rootCmd.Flags().BoolP("verbose", "v", false, "Debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	font, err := fontSource(cmd)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("output")
	doSummary, _ := cmd.Flags().GetBool("summarize")

	var summarizer *summarize.Summarizer
	if doSummary {
		model, _ := cmd.Flags().GetString("model")
		summarizer, err = summarize.New(summarize.Options{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  model,
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("--summarize requires OPENAI_API_KEY: %w", err)
		}
	}

	// one file fully before the next; a failure is isolated to its file
	var errs error
	for _, input := range args {
		if err := convertOne(cmd.Context(), log, font, summarizer, input, outDir); err != nil {
			log.Error("conversion failed", zap.String("input", input), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", input, err))
		}
	}
	return errs
}

func convertOne(ctx context.Context, log *zap.Logger, font converter.FontSource,
	summarizer *summarize.Summarizer, input, outDir string) error {

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	name := filepath.Base(input)
	pipeline := converter.NewPipeline(converter.Options{
		Font:   font,
		Logger: log.With(zap.String("input", name)),
		Progress: func(percent int) {
			fmt.Printf("\r%s: %3d%%", name, percent)
		},
	})

	result, err := pipeline.Convert(ctx, data)
	fmt.Println()
	if err != nil {
		return err
	}

	output := outputPath(input, outDir)
	if err := os.WriteFile(output, result.PDF, 0o644); err != nil {
		return err
	}
	log.Info("converted",
		zap.String("output", output),
		zap.Int("pages", result.Pages),
		zap.Int("chapters", result.Chapters))

	if summarizer == nil {
		return nil
	}
	summary, err := summarizer.Summarize(ctx, result.Preview)
	if err != nil {
		// the PDF is already written; a summary failure is not fatal
		log.Warn("summarization failed", zap.Error(err))
		return nil
	}
	summaryPath := strings.TrimSuffix(output, ".pdf") + ".summary.json"
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(summaryPath, payload, 0o644)
}

// fontSource builds the font source from flags: a local file wins, then
// caller URLs, then the default mirrors. Remote sources are wrapped in
// a cache so a batch fetches the font once.
func fontSource(cmd *cobra.Command) (converter.FontSource, error) {
	if fontPath, _ := cmd.Flags().GetString("font"); fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font: %w", err)
		}
		return converter.EmbeddedFont(data), nil
	}

	urls, _ := cmd.Flags().GetStringSlice("font-url")
	if len(urls) == 0 {
		urls = converter.DefaultFontURLs
	}
	return converter.NewCachedFont(&converter.RemoteFont{URLs: urls}), nil
}

func outputPath(input, outDir string) string {
	out := strings.TrimSuffix(input, filepath.Ext(input)) + ".pdf"
	if outDir != "" {
		out = filepath.Join(outDir, filepath.Base(out))
	}
	return out
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
