package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/komposer/komposer/internal/plan"
)

type Tray struct {
	planner plan.PlannerService
	runner  *plan.Runner
	logger  *slog.Logger

	statusItem *systray.MenuItem
	plansItem  *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu sync.Mutex

	onOpenInbox func() error
	onQuit      func()
}

type TrayConfig struct {
	Planner     plan.PlannerService
	Runner      *plan.Runner
	Logger      *slog.Logger
	OnOpenInbox func() error
	OnQuit      func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		planner:     cfg.Planner,
		runner:      cfg.Runner,
		logger:      cfg.Logger,
		onOpenInbox: cfg.OnOpenInbox,
		onQuit:      cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Komposer")
	systray.SetTooltip("Komposer Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.plansItem = systray.AddMenuItem("Plans: 0", "Stored build plans")
	t.plansItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause rendering")

	openInboxItem := systray.AddMenuItem("Open Inbox...", "Open the komposition inbox folder")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Komposer Agent")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-openInboxItem.ClickedCh:
				t.handleOpenInbox()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleOpenInbox() {
	if t.onOpenInbox != nil {
		if err := t.onOpenInbox(); err != nil {
			t.logger.Error("failed to open inbox", "error", err)
		}
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdatePlansCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.plansItem.SetTitle(fmt.Sprintf("Plans: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
