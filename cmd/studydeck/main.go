// Package main provides the CLI entrypoint for studydeck.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/conorfennell/studydeck/internal/config"
	"github.com/conorfennell/studydeck/internal/deck"
	"github.com/conorfennell/studydeck/internal/ingest"
	"github.com/conorfennell/studydeck/internal/parser"
	"github.com/conorfennell/studydeck/internal/srs"
	"github.com/conorfennell/studydeck/internal/storage"
	"github.com/conorfennell/studydeck/internal/study"
	"github.com/conorfennell/studydeck/internal/sync"
	"github.com/conorfennell/studydeck/internal/web"
)

var (
	ingestAccept bool

	reviewCorrect    bool
	reviewConfidence int
	reviewTimeSpent  int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "studydeck",
		Short:        "Turn study documents into spaced-repetition flashcards",
		SilenceUsage: true,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newReviewCmd())
	rootCmd.AddCommand(newDueCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newSyncCmd())
	return rootCmd
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	db       *storage.DB
	study    *study.Service
	pipeline *ingest.Pipeline
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	config.Logger(cfg.LogLevel)

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	slog.Debug("Database opened", "path", cfg.DB)

	var opts []study.Option
	if cfg.StarterDeck {
		entries, err := deck.Starter()
		if err != nil {
			db.Close()
			return nil, err
		}
		opts = append(opts, study.WithStarterDeck(study.FromEntries(entries)))
	}

	svc := study.NewService(db, srs.DefaultParams(), opts...)
	if err := svc.Load(cmd.Context()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load study state: %w", err)
	}
	return &app{cfg: cfg, db: db, study: svc, pipeline: ingest.NewPipeline()}, nil
}

func (a *app) syncer() *sync.Syncer {
	return &sync.Syncer{Service: a.study, Pipeline: a.pipeline, ReposDir: a.cfg.ReposDir}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.db.Close()

			if a.cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			syncer := a.syncer()
			handler := web.NewServer(a.study, a.pipeline, syncer, web.Options{
				MaxUploadBytes: int64(a.cfg.MaxUploadMB) << 20,
				CORSOrigins:    a.cfg.CORSOrigins,
				Sources:        a.cfg.Sources,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The startup sync is cancelled and waited for before db.Close runs.
			syncDone := make(chan struct{})
			go func() {
				defer close(syncDone)
				if len(a.cfg.Sources) > 0 {
					syncer.Run(ctx, a.cfg.Sources)
				}
			}()
			defer func() {
				stop()
				<-syncDone
			}()

			srv := &http.Server{
				Addr:              a.cfg.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				slog.Info("Server starting", "addr", a.cfg.Addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Generate cards from a PDF or text document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.db.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			res, err := a.pipeline.IngestReader(cmd.Context(), f, info.Size(), filepath.Base(args[0]))
			if err != nil {
				return err
			}

			if ingestAccept {
				added, err := a.study.AcceptGenerated(cmd.Context(), res.Cards)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Generated %d cards, stored %d.\n", len(res.Cards), len(added))
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().BoolVar(&ingestAccept, "accept", false, "store every generated card")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <deck.md>",
		Short: "Import a hand-written Q:/A: deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.db.Close()

			entries, err := parser.ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("error parsing %s: %w", args[0], err)
			}
			added, err := a.study.Import(cmd.Context(), study.FromEntries(entries))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d cards, imported %d.\n", len(entries), len(added))
			return nil
		},
	}
}

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <card-id>",
		Short: "Record an answer to a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.db.Close()

			card, err := a.study.SubmitReview(cmd.Context(), study.ReviewInput{
				CardID:     args[0],
				Correct:    reviewCorrect,
				Confidence: reviewConfidence,
				TimeSpent:  reviewTimeSpent,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Next review %s (interval %d days, mastery %d%%).\n",
				card.NextReview.Format(time.DateOnly), card.Interval, card.Mastery)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reviewCorrect, "correct", false, "the answer was correct")
	cmd.Flags().IntVar(&reviewConfidence, "confidence", int(srs.FairlySure), "confidence from 1 (no idea) to 4 (certain)")
	cmd.Flags().IntVar(&reviewTimeSpent, "time", 0, "seconds spent on the card")
	return cmd
}

func newDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "List cards due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.db.Close()

			due := a.study.DueCards()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOPIC\tFRONT")
			for _, c := range due {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Topic, c.Front)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d cards due.\n", len(due))
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show progress and review analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.db.Close()

			progress := a.study.Progress()
			stats := a.study.Analytics()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cards: %d (mastered %d, learning %d, new %d), mastery %d%%\n",
				progress.TotalCards, progress.Mastered, progress.Learning, progress.New, progress.MasteryPercentage)
			fmt.Fprintf(out, "Last 30 days: %d reviews, %d%% accuracy, ~%d min, streak %d days\n",
				stats.TotalReviews, stats.Accuracy, stats.StudyTime, stats.CurrentStreak)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOPIC\tCARDS\tMASTERED\tMASTERY")
			for _, t := range progress.Topics {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d%%\n", t.Name, t.Total, t.Mastered, t.MasteryPct)
			}
			return w.Flush()
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import every document in the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.db.Close()

			report, err := a.syncer().Run(cmd.Context(), a.cfg.Sources)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d files, added %d cards, %d errors.\n",
				report.Files, report.Added, len(report.Errors))
			if len(report.Errors) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nErrors:")
				for _, e := range report.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", e)
				}
			}
			return nil
		},
	}
}
