// Package sync ingests every document found in the configured sources.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/conorfennell/studydeck/internal/gitsource"
	"github.com/conorfennell/studydeck/internal/ingest"
	"github.com/conorfennell/studydeck/internal/parser"
	"github.com/conorfennell/studydeck/internal/study"
)

// Report counts what a sync did.
type Report struct {
	Files  int
	Added  int
	Errors []error
}

// ErrRunning is returned by Run while another run of the same Syncer is in
// progress.
var ErrRunning = errors.New("studydeck: sync already running")

// Syncer walks sources and stores the cards found in them. Only one run of a
// Syncer happens at a time, so checkouts under ReposDir are never shared.
type Syncer struct {
	Service  *study.Service
	Pipeline *ingest.Pipeline
	ReposDir string

	running atomic.Bool
}

// Run syncs each source in turn. Git sources are cloned or pulled into
// ReposDir first. A failing file or source never stops the others.
func (s *Syncer) Run(ctx context.Context, sources []string) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("Sync skipped, another sync is running")
		return Report{}, ErrRunning
	}
	defer s.running.Store(false)

	slog.Info("Starting sync", "sources", len(sources))
	var report Report

	for _, source := range sources {
		path := source
		if gitsource.IsGitURL(source) {
			path = gitsource.LocalPath(s.ReposDir, source)
			if err := gitsource.Sync(ctx, source, path); err != nil {
				slog.Error("Error syncing git repo", "url", source, "error", err)
				report.Errors = append(report.Errors, err)
				continue
			}
		}
		s.syncDir(ctx, path, &report)
	}

	slog.Info("Sync complete",
		"files", report.Files,
		"added", report.Added,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (s *Syncer) syncDir(ctx context.Context, root string, report *Report) {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		added, handled, err := s.syncFile(ctx, path)
		if !handled {
			return nil
		}
		report.Files++
		if err != nil {
			slog.Warn("Failed to sync file", "path", path, "error", err)
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		report.Added += added
		return nil
	})
	if walkErr != nil {
		slog.Error("Error walking directory", "path", root, "error", walkErr)
		report.Errors = append(report.Errors, walkErr)
	}
}

// syncFile stores the cards of one file. Decks (.md) are parsed; documents
// (.pdf, .txt) go through the ingestion pipeline and all their cards are
// accepted. Other files are not handled.
func (s *Syncer) syncFile(ctx context.Context, path string) (int, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		entries, err := parser.ParseFile(path)
		if err != nil {
			return 0, true, err
		}
		added, err := s.Service.Import(ctx, study.FromEntries(entries))
		return len(added), true, err

	case ".pdf", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return 0, true, err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return 0, true, err
		}
		res, err := s.Pipeline.IngestReader(ctx, f, info.Size(), filepath.Base(path))
		if err != nil {
			return 0, true, err
		}
		added, err := s.Service.AcceptGenerated(ctx, res.Cards)
		return len(added), true, err

	default:
		return 0, false, nil
	}
}
