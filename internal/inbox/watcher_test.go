package inbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/magplayer/magd/internal/ingest"
	"github.com/magplayer/magd/internal/magservice"
	"github.com/magplayer/magd/internal/testutil"
)

func testService(t *testing.T) *magservice.Service {
	t.Helper()
	db := testutil.TestDB(t)
	_, blobs := testutil.TestBlobs(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := ingest.New(db, blobs, logger, 0)
	return magservice.New(db, blobs, pipeline, logger, 0)
}

func startWatcher(t *testing.T, dir string, svc *magservice.Service, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		defer close(done)
		if err := Watch(ctx, dir, svc, logger, cb); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}

func TestWatchIngestsDroppedArchive(t *testing.T) {
	dir := t.TempDir()
	svc := testService(t)

	ingested := make(chan string, 1)
	startWatcher(t, dir, svc, func(id string) { ingested <- id })

	archive := testutil.MagArchive(t,
		testutil.ArchiveFile{Name: "Depoimento/voz.mp3", Data: []byte("x")},
	)
	if err := os.WriteFile(filepath.Join(dir, "drop.mag"), archive, 0o644); err != nil {
		t.Fatal(err)
	}

	var pkgID string
	select {
	case pkgID = <-ingested:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for ingestion callback")
	}

	detail, err := svc.GetPackage(context.Background(), pkgID)
	if err != nil {
		t.Fatalf("GetPackage: %v", err)
	}
	if detail.Package.FileName != "drop.mag" {
		t.Errorf("package = %+v", detail.Package)
	}

	history, err := svc.History(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Origin != magservice.OriginInbox {
		t.Errorf("history = %+v", history)
	}

	ok := waitFor(t, 3*time.Second, func() bool {
		_, err := os.Stat(filepath.Join(dir, processedDir, "drop.mag"))
		return err == nil
	})
	if !ok {
		t.Error("archive not moved to processed/")
	}
}

func TestWatchMovesBadArchiveToFailed(t *testing.T) {
	dir := t.TempDir()
	svc := testService(t)
	startWatcher(t, dir, svc, nil)

	if err := os.WriteFile(filepath.Join(dir, "broken.mag"), []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(filepath.Join(dir, failedDir, "broken.mag"))
		return err == nil
	})
	if !ok {
		t.Error("archive not moved to failed/")
	}

	pkgs, err := svc.ListPackages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 0 {
		t.Errorf("packages = %+v", pkgs)
	}
}

func TestWatchPicksUpPreexistingFiles(t *testing.T) {
	dir := t.TempDir()
	svc := testService(t)

	archive := testutil.MagArchive(t, testutil.Text("nota.md", "# Nota"))
	if err := os.WriteFile(filepath.Join(dir, "early.mag"), archive, 0o644); err != nil {
		t.Fatal(err)
	}

	ingested := make(chan string, 1)
	startWatcher(t, dir, svc, func(id string) { ingested <- id })

	select {
	case <-ingested:
	case <-time.After(5 * time.Second):
		t.Fatal("pre-existing archive not ingested")
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	svc := testService(t)
	startWatcher(t, dir, svc, nil)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(2 * settleDelay)
	pkgs, err := svc.ListPackages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 0 {
		t.Errorf("packages = %+v", pkgs)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("unrelated file was moved")
	}
}

func TestIsMagFile(t *testing.T) {
	cases := map[string]bool{
		"a.mag":     true,
		"A.MAG":     true,
		"a.zip":     false,
		"mag":       false,
		"a.mag.bak": false,
	}
	for name, want := range cases {
		if got := isMagFile(name); got != want {
			t.Errorf("isMagFile(%q) = %v, want %v", name, got, want)
		}
	}
}
