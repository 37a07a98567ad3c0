package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/mydocs/internal/config"
	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/logging"
	"github.com/standardbeagle/mydocs/internal/tools"
)

// scanConcurrency bounds parallel ingests during a manual scan.
const scanConcurrency = 4

// Ingestor is the slice of the tool layer the dispatcher drives.
type Ingestor interface {
	IngestPath(ctx context.Context, path string, force bool) (*tools.IngestResult, error)
	RemovePath(ctx context.Context, path string) (bool, error)
	MovePath(ctx context.Context, oldPath, newPath string) (*tools.IngestResult, error)
}

// Dispatcher maps filesystem events onto ingest operations.
type Dispatcher struct {
	ingest Ingestor
	log    *logging.Logger
}

func NewDispatcher(ingest Ingestor, log *logging.Logger) *Dispatcher {
	return &Dispatcher{ingest: ingest, log: log}
}

// OnCreated indexes a new file.
func (d *Dispatcher) OnCreated(ctx context.Context, path string) error {
	_, err := d.ingest.IngestPath(ctx, path, false)
	return d.filterBenign(path, err)
}

// OnModified reindexes a file in place. An edit to a file the store has
// never seen is treated as a create.
func (d *Dispatcher) OnModified(ctx context.Context, path string) error {
	_, err := d.ingest.IngestPath(ctx, path, false)
	return d.filterBenign(path, err)
}

// OnDeleted removes the stored document, if any.
func (d *Dispatcher) OnDeleted(ctx context.Context, path string) error {
	_, err := d.ingest.RemovePath(ctx, path)
	return err
}

// OnMoved rewrites the stored path and reindexes the content.
func (d *Dispatcher) OnMoved(ctx context.Context, oldPath, newPath string) error {
	_, err := d.ingest.MovePath(ctx, oldPath, newPath)
	return d.filterBenign(newPath, err)
}

// filterBenign swallows per-file conditions that should not count against
// watcher health: files gone before dispatch, unsupported types that slipped
// the filter, and empty files.
func (d *Dispatcher) filterBenign(path string, err error) error {
	if err == nil {
		return nil
	}
	switch errors.TypeOf(err) {
	case errors.ErrorTypeNotFound, errors.ErrorTypeUnsupportedType, errors.ErrorTypeEmptyContent:
		d.log.Debug("skipping %s: %v", path, err)
		return nil
	}
	return err
}

// ScanReport summarizes one manual directory scan.
type ScanReport struct {
	Scanned int64 `json:"scanned"`
	Indexed int64 `json:"indexed"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
}

// ManualScan walks the configured directories and ingests every matching
// file. Per-file failures are counted, not fatal.
func (d *Dispatcher) ManualScan(ctx context.Context, cfg config.Watcher) (*ScanReport, error) {
	report := &ScanReport{}
	var scanned, indexed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	for _, dir := range cfg.Directories {
		err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
			if err != nil {
				d.log.Warning("scan error under %s: %v", dir, err)
				return nil
			}
			if entry.IsDir() {
				if path != dir && strings.HasPrefix(filepath.Base(path), ".") {
					return filepath.SkipDir
				}
				if !cfg.Recursive && path != dir {
					return filepath.SkipDir
				}
				return nil
			}
			if !matchesExtension(path, cfg.Extensions) {
				return nil
			}
			scanned.Add(1)
			g.Go(func() error {
				result, err := d.ingest.IngestPath(gctx, path, false)
				switch {
				case err != nil && d.filterBenign(path, err) == nil:
					skipped.Add(1)
				case err != nil:
					failed.Add(1)
					d.log.Warning("scan ingest failed for %s: %v", path, err)
				case result.Status == "already_indexed":
					skipped.Add(1)
				default:
					indexed.Add(1)
				}
				return gctx.Err()
			})
			return gctx.Err()
		})
		if err != nil {
			return nil, err
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Scanned = scanned.Load()
	report.Indexed = indexed.Load()
	report.Skipped = skipped.Load()
	report.Failed = failed.Load()
	d.log.Info("manual scan complete: %d scanned, %d indexed, %d skipped, %d failed",
		report.Scanned, report.Indexed, report.Skipped, report.Failed)
	return report, nil
}

func matchesExtension(path string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
