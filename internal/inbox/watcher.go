// Package inbox watches a drop folder and ingests .mag archives placed in it.
package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/magplayer/magd/internal/magservice"
)

// Subfolders archives are moved to after processing.
const (
	processedDir = "processed"
	failedDir    = "failed"
)

// EventCallback is called after an archive has been ingested from the inbox.
type EventCallback func(packageID string)

// settleDelay is how long a file must stay quiet before it is considered
// fully written. Drop-folder copies arrive as a burst of write events.
const settleDelay = 500 * time.Millisecond

// Watch monitors dir for new .mag files until ctx is cancelled. Each settled
// file is ingested through svc and then moved to processed/ or failed/.
// Files already present at startup are picked up as well.
func Watch(ctx context.Context, dir string, svc *magservice.Service, logger *slog.Logger, cb EventCallback) error {
	for _, sub := range []string{processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("inbox: started", slog.String("dir", dir))

	// pending maps an absolute path to the time of its last write event.
	pending := make(map[string]time.Time)

	// Pick up archives already sitting in the inbox.
	if existing, err := os.ReadDir(dir); err == nil {
		now := time.Now()
		for _, de := range existing {
			if !de.IsDir() && isMagFile(de.Name()) {
				pending[filepath.Join(dir, de.Name())] = now
			}
		}
	}

	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("inbox: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isMagFile(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[ev.Name] = time.Now()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, ev.Name)
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("inbox: watch error", slog.String("error", werr.Error()))

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}
				delete(pending, path)
				process(ctx, path, dir, svc, logger, cb)
			}
		}
	}
}

// process ingests one settled archive and moves it out of the inbox.
func process(ctx context.Context, path, dir string, svc *magservice.Service, logger *slog.Logger, cb EventCallback) {
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("inbox: read failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}

	report, err := svc.IngestArchive(ctx, name, data, magservice.OriginInbox)
	if err != nil {
		logger.Warn("inbox: ingest failed", slog.String("file", name), slog.String("error", err.Error()))
		moveTo(path, filepath.Join(dir, failedDir), logger)
		return
	}

	logger.Info("inbox: ingested",
		slog.String("file", name),
		slog.String("package", report.Package.ID),
		slog.Int("media", len(report.MediaItems)),
		slog.Int("documents", len(report.Documents)))
	moveTo(path, filepath.Join(dir, processedDir), logger)

	if cb != nil {
		cb(report.Package.ID)
	}
}

// moveTo relocates an archive, suffixing the name if the target exists.
func moveTo(path, destDir string, logger *slog.Logger) {
	base := filepath.Base(path)
	dest := filepath.Join(destDir, base)
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(destDir, time.Now().UTC().Format("20060102T150405")+"_"+base)
	}
	if err := os.Rename(path, dest); err != nil {
		logger.Warn("inbox: move failed", slog.String("file", base), slog.String("error", err.Error()))
	}
}

func isMagFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".mag")
}
