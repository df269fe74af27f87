package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// refreshInterval is how often the menu re-reads counts.
const refreshInterval = 5 * time.Second

// Counter reports the collection sizes. *diary.Service implements it.
type Counter interface {
	Counts(ctx context.Context) (total, cropped int, err error)
}

// CropTracker reports how many crops are running. *crop.Jobs implements it.
type CropTracker interface {
	InFlight() int
}

type Tray struct {
	videos Counter
	crops  CropTracker
	logger *slog.Logger

	statusItem *systray.MenuItem
	videosItem *systray.MenuItem

	mu   sync.Mutex
	stop chan struct{}

	onOpen func()
	onQuit func()
}

type TrayConfig struct {
	Videos Counter
	Crops  CropTracker
	Logger *slog.Logger
	OnOpen func()
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		videos: cfg.Videos,
		crops:  cfg.Crops,
		logger: cfg.Logger,
		stop:   make(chan struct{}),
		onOpen: cfg.OnOpen,
		onQuit: cfg.OnQuit,
	}
}

// Run blocks until the tray exits. It must be called from the main
// goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Clip Diary")
	systray.SetTooltip("Clip Diary")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Crop status")
	t.statusItem.Disable()

	t.videosItem = systray.AddMenuItem(videosTitle(0, 0), "Diary entries")
	t.videosItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Diary", "Open the diary in a browser")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Clip Diary")

	t.Refresh()
	go t.refreshLoop()

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				if t.onOpen != nil {
					t.onOpen()
				}
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
	close(t.stop)
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.Refresh()
		}
	}
}

// Refresh re-reads counts and crop activity into the menu.
func (t *Tray) Refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}

	running := 0
	if t.crops != nil {
		running = t.crops.InFlight()
	}
	t.statusItem.SetTitle("Status: " + statusTitle(running))

	if t.videos == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	total, cropped, err := t.videos.Counts(ctx)
	if err != nil {
		t.logger.Warn("failed to refresh tray counts", "error", err)
		return
	}
	t.videosItem.SetTitle(videosTitle(total, cropped))
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusTitle(running int) string {
	switch running {
	case 0:
		return "Idle"
	case 1:
		return "Cropping 1 video"
	default:
		return fmt.Sprintf("Cropping %d videos", running)
	}
}

func videosTitle(total, cropped int) string {
	return fmt.Sprintf("Videos: %d (%d cropped)", total, cropped)
}
