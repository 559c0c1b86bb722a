package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/komposer/komposer/internal/db"
	"github.com/komposer/komposer/internal/media"
	"github.com/komposer/komposer/internal/plan"
	"github.com/komposer/komposer/internal/store"
)

const validDoc = `{
	"metadata": {"title": "Inbox Cut", "bpm": 120, "totalBeats": 16},
	"segments": [
		{"id": "a", "sourceRef": "city.mp4", "startBeat": 0, "endBeat": 16}
	]
}`

func setupInbox(t *testing.T, autoRender bool) (*Inbox, plan.Repository, string) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	files := store.NewMemoryFileStore()
	if err := files.Register(t.Context(), &store.MediaFile{Name: "city.mp4", Path: "/media/city.mp4"}); err != nil {
		t.Fatalf("failed to register source: %v", err)
	}

	engine := media.NewStubEngine(logger)
	engine.Files["/media/city.mp4"] = &media.ProbeResult{DurationSeconds: 30, MediaType: media.TypeVideo}

	repo := plan.NewRepository(database.Conn())
	planner := plan.NewService(repo, files, engine, 300, 1920, 1080, logger)

	inboxDir := filepath.Join(t.TempDir(), "inbox")
	in := NewInbox(inboxDir, planner, time.Minute, autoRender, logger)
	if err := in.ensureDirs(); err != nil {
		t.Fatalf("ensureDirs: %v", err)
	}
	return in, repo, inboxDir
}

func dropFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestInbox_ValidDocument(t *testing.T) {
	in, repo, dir := setupInbox(t, false)
	dropFile(t, dir, "cut.json", validDoc)

	in.Scan(context.Background())

	plans, err := repo.ListPlans(t.Context(), 10)
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("plans = %d, want 1", len(plans))
	}
	if plans[0].Title != "Inbox Cut" {
		t.Errorf("title = %q, want Inbox Cut", plans[0].Title)
	}

	if _, err := os.Stat(filepath.Join(dir, "cut.json")); !os.IsNotExist(err) {
		t.Error("processed document still in inbox")
	}
	if _, err := os.Stat(filepath.Join(dir, doneDir, "cut.json")); err != nil {
		t.Errorf("processed document not archived: %v", err)
	}

	// No auto render, no jobs.
	jobs, _ := repo.ListJobs(t.Context(), 10)
	if len(jobs) != 0 {
		t.Errorf("jobs = %d, want 0", len(jobs))
	}
}

func TestInbox_AutoRender(t *testing.T) {
	in, repo, dir := setupInbox(t, true)
	dropFile(t, dir, "cut.json", validDoc)

	in.Scan(context.Background())

	jobs, err := repo.ListJobs(t.Context(), 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != plan.JobStatusPending {
		t.Fatalf("jobs = %+v, want one pending render", jobs)
	}
}

func TestInbox_InvalidDocument(t *testing.T) {
	in, repo, dir := setupInbox(t, false)
	dropFile(t, dir, "broken.json", `{"metadata": {"bpm": -3}}`)

	in.Scan(context.Background())

	plans, _ := repo.ListPlans(t.Context(), 10)
	if len(plans) != 0 {
		t.Errorf("plans = %d, want 0", len(plans))
	}

	failed := filepath.Join(dir, failedDir, "broken.json")
	if _, err := os.Stat(failed); err != nil {
		t.Fatalf("rejected document not moved to failed/: %v", err)
	}
	reason, err := os.ReadFile(failed + ".err")
	if err != nil {
		t.Fatalf("missing rejection reason: %v", err)
	}
	if len(reason) == 0 {
		t.Error("rejection reason is empty")
	}
}

func TestInbox_UnknownSource(t *testing.T) {
	in, _, dir := setupInbox(t, false)
	dropFile(t, dir, "ghost.json", `{
		"metadata": {"title": "Ghost", "bpm": 120, "totalBeats": 16},
		"segments": [{"id": "a", "sourceRef": "ghost.mp4", "startBeat": 0, "endBeat": 16}]
	}`)

	in.Scan(context.Background())

	if _, err := os.Stat(filepath.Join(dir, failedDir, "ghost.json")); err != nil {
		t.Errorf("document with unknown source not rejected: %v", err)
	}
}

func TestInbox_IgnoresNonJSON(t *testing.T) {
	in, repo, dir := setupInbox(t, false)
	dropFile(t, dir, "notes.txt", "not a document")

	in.Scan(context.Background())

	plans, _ := repo.ListPlans(t.Context(), 10)
	if len(plans) != 0 {
		t.Errorf("plans = %d, want 0", len(plans))
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("non-JSON file must stay put: %v", err)
	}
}

func TestInbox_RejectsTraversalDir(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	// Built without Join so the ".." survives cleaning.
	dir := base + string(os.PathSeparator) + "sub" + string(os.PathSeparator) + ".." +
		string(os.PathSeparator) + "inbox"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	in := NewInbox(dir, nil, time.Second, false, logger)

	if err := in.ensureDirs(); err == nil {
		t.Fatal("ensureDirs accepted a path with traversal")
	}
}
