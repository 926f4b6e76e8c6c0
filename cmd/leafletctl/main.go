// Command leafletctl runs the leaflet pipelines from the terminal:
// fetch a leaflet from the portal, inspect its chunks, or ask it a question.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/giygas/leaflet-api/app"
	"github.com/giygas/leaflet-api/config"
	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/leafletparser"
	"github.com/giygas/leaflet-api/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions holds global flags
type rootOptions struct {
	logLevel string
	timeout  time.Duration
}

type fetchOptions struct {
	identity entities.MedicineIdentity
	out      string
}

type chunksOptions struct {
	pdf      string
	showText bool
}

type askOptions struct {
	pdf      string
	question string
	language string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "leafletctl",
		Short: "Fetch, index and query medicine leaflets",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to read .env: %w", err)
			}
			logging.InitLogger(logging.Options{Level: opts.logLevel})
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall operation timeout")

	cmd.AddCommand(newFetchCmd(opts), newChunksCmd(), newAskCmd(opts))
	return cmd
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Search the portal and save the summary of product characteristics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			if err := a.Validator.ValidateIdentity(&opts.identity); err != nil {
				return err
			}
			return runFetch(ctx, a.Fetcher, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.identity.Name, "name", "", "medicine name")
	f.StringVar(&opts.identity.Brand, "brand", "", "brand or manufacturer")
	f.StringVar(&opts.identity.ActiveSubstance, "substance", "", "active substance")
	f.StringVar(&opts.identity.Dosage, "dosage", "", "dosage, e.g. 500 mg")
	f.StringVarP(&opts.out, "out", "o", "leaflet.pdf", "where to write the PDF")
	return cmd
}

func runFetch(ctx context.Context, fetcher interfaces.LeafletFetcher, opts *fetchOptions, w io.Writer) error {
	result, err := fetcher.FetchLeaflet(ctx, opts.identity)
	if err != nil {
		return err
	}

	summary := map[string]any{
		"fetchId":       result.FetchID,
		"status":        result.Status,
		"tier":          result.Tier,
		"attempts":      result.Attempts,
		"match":         result.Match,
		"lowConfidence": result.LowConfidence,
	}

	if result.Found() {
		if err := os.WriteFile(opts.out, result.RCM.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.out, err)
		}
		summary["file"] = opts.out
		summary["bytes"] = len(result.RCM.Data)
	}
	return printJSON(w, summary)
}

func newChunksCmd() *cobra.Command {
	opts := &chunksOptions{}

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Extract and chunk a local PDF without embedding it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pdf, err := os.ReadFile(opts.pdf)
			if err != nil {
				return err
			}
			return runChunks(pdf, leafletparser.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap), opts.showText, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.pdf, "pdf", "", "path to the leaflet PDF")
	cmd.Flags().BoolVar(&opts.showText, "text", false, "print chunk text")
	_ = cmd.MarkFlagRequired("pdf")
	return cmd
}

func runChunks(pdf []byte, splitter leafletparser.Splitter, showText bool, w io.Writer) error {
	pages, err := leafletparser.ExtractPages(pdf)
	if err != nil {
		return err
	}

	chunks := leafletparser.ChunkPages(pages, splitter, leafletparser.DefaultSourceTag)
	if !showText {
		for i := range chunks {
			chunks[i].Text = fmt.Sprintf("%d bytes", len(chunks[i].Text))
		}
	}
	return printJSON(w, map[string]any{
		"pages":  len(pages),
		"chunks": chunks,
	})
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer a question about a local PDF with page citations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			if err := a.Validator.ValidateQuestion(opts.question); err != nil {
				return err
			}
			pdf, err := os.ReadFile(opts.pdf)
			if err != nil {
				return err
			}
			return runAsk(ctx, a.Indexer, a.Answerer, pdf, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.pdf, "pdf", "", "path to the leaflet PDF")
	cmd.Flags().StringVarP(&opts.question, "question", "q", "", "question to ask")
	cmd.Flags().StringVar(&opts.language, "lang", "", "answer language (pt or en)")
	_ = cmd.MarkFlagRequired("pdf")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func runAsk(ctx context.Context, indexer interfaces.IndexBuilder, answerer interfaces.QuestionAnswerer, pdf []byte, opts *askOptions, w io.Writer) error {
	index, err := indexer.BuildIndex(ctx, pdf)
	if err != nil {
		return err
	}

	var answerOpts []interfaces.AnswerOption
	if opts.language != "" {
		answerOpts = append(answerOpts, interfaces.WithLanguage(opts.language))
	}
	return printJSON(w, answerer.Answer(ctx, index, opts.question, answerOpts...))
}

func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
