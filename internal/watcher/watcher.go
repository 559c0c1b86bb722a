// Package watcher polls an inbox directory for komposition documents and
// turns each one into a stored build plan. Dropping a JSON file into the
// inbox is the no-API way to drive the planner.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/komposer/komposer/internal/export"
	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/plan"
)

const (
	doneDir   = "done"
	failedDir = "failed"
)

// Inbox scans a directory for *.json komposition files on a fixed interval.
// Processed files move to done/, rejected ones to failed/ next to a .err
// file carrying the reason.
type Inbox struct {
	dir          string
	planner      plan.PlannerService
	logger       *slog.Logger
	pollInterval time.Duration
	autoRender   bool
	running      atomic.Bool
}

func NewInbox(dir string, planner plan.PlannerService, pollInterval time.Duration, autoRender bool, logger *slog.Logger) *Inbox {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Inbox{
		dir:          dir,
		planner:      planner,
		logger:       logger,
		pollInterval: pollInterval,
		autoRender:   autoRender,
	}
}

func (in *Inbox) Start(ctx context.Context) {
	if in.running.Swap(true) {
		return
	}

	if err := in.ensureDirs(); err != nil {
		in.logger.Error("inbox watcher disabled", "error", err)
		in.running.Store(false)
		return
	}

	in.logger.Info("inbox watcher started", "dir", in.dir)

	ticker := time.NewTicker(in.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("inbox watcher stopping")
			in.running.Store(false)
			return
		case <-ticker.C:
			in.Scan(ctx)
		}
	}
}

func (in *Inbox) IsRunning() bool {
	return in.running.Load()
}

func (in *Inbox) ensureDirs() error {
	for _, dir := range []string{in.dir, filepath.Join(in.dir, doneDir), filepath.Join(in.dir, failedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := export.ValidateDir(in.dir); err != nil {
		return fmt.Errorf("inbox %s: %w", in.dir, err)
	}
	return nil
}

// Scan processes every pending document in the inbox once.
func (in *Inbox) Scan(ctx context.Context) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		in.logger.Error("failed to read inbox", "dir", in.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		in.processFile(ctx, filepath.Join(in.dir, entry.Name()))
	}
}

func (in *Inbox) processFile(ctx context.Context, path string) {
	name := filepath.Base(path)
	in.logger.Info("processing inbox document", "file", name)

	data, err := os.ReadFile(path)
	if err != nil {
		in.logger.Error("failed to read inbox document", "file", name, "error", err)
		return
	}

	doc, err := komposition.Parse(data)
	if err != nil {
		in.reject(path, err)
		return
	}

	p, err := in.planner.BuildPlan(ctx, plan.Request{Komposition: doc})
	if err != nil {
		in.reject(path, err)
		return
	}

	in.logger.Info("inbox document planned", "file", name, "plan_id", p.ID)

	if in.autoRender {
		if _, err := in.planner.EnqueueRender(ctx, p.ID); err != nil {
			in.logger.Error("failed to enqueue render", "plan_id", p.ID, "error", err)
		}
	}

	if err := os.Rename(path, filepath.Join(in.dir, doneDir, name)); err != nil {
		in.logger.Error("failed to archive inbox document", "file", name, "error", err)
	}
}

func (in *Inbox) reject(path string, cause error) {
	name := filepath.Base(path)
	in.logger.Warn("rejecting inbox document", "file", name, "error", cause)

	dest := filepath.Join(in.dir, failedDir, name)
	if err := os.Rename(path, dest); err != nil {
		in.logger.Error("failed to move rejected document", "file", name, "error", err)
		return
	}

	reason := []byte(cause.Error() + "\n")
	if err := os.WriteFile(dest+".err", reason, 0o644); err != nil {
		in.logger.Error("failed to write rejection reason", "file", name, "error", err)
	}
}
