package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/progrium/darwinkit/dispatch"
	"github.com/progrium/darwinkit/macos/appkit"

	"github.com/veilhq/veil/internal/autoupdate"
	"github.com/veilhq/veil/internal/conceal"
	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/hotkey"
	"github.com/veilhq/veil/internal/ipc"
	"github.com/veilhq/veil/internal/pidfile"
	"github.com/veilhq/veil/internal/uibridge"
	"github.com/veilhq/veil/pkg/macui"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=..."
	Version = "dev"

	statusBarApp *macui.StatusBarApp
	app          appkit.Application
	bridgeClient *uibridge.Client

	// overlay is the answer panel; overlayCtl drives concealment on its
	// NSWindow from the daemon's broadcast state. Both are touched only on
	// the main thread.
	overlay    *macui.OverlayWindow
	overlayCtl *conceal.Controller
)

func main() {
	// CRITICAL: Lock to OS thread for macOS GUI operations
	// macOS AppKit requires all GUI operations to happen on the main thread
	runtime.LockOSThread()

	// Panic recovery - prevents hanging if UI framework crashes
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC: veil-ui crashed: %v", r)
			fmt.Fprintf(os.Stderr, "FATAL: veil-ui panicked: %v\n", r)
			os.Exit(1)
		}
	}()

	log.Println("===========================================")
	log.Println("Veil UI starting (version " + Version + ")...")
	log.Printf("PID: %d", os.Getpid())
	log.Printf("Timestamp: %s", time.Now().Format(time.RFC3339))
	log.Println("===========================================")

	// Check for duplicate instances
	pidFilePath := pidfile.PathFor("veil-ui")
	pf, err := pidfile.Acquire(pidFilePath)
	if err != nil {
		log.Printf("Failed to create PID file: %v", err)
		log.Println("Another instance of veil-ui may already be running.")
		log.Printf("If you're sure no other instance is running, remove: %s", pidFilePath)
		os.Exit(1)
	}
	defer func() {
		log.Println("[SHUTDOWN] Removing PID file...")
		if err := pf.Release(); err != nil {
			log.Printf("Warning: failed to remove PID file: %v", err)
		}
	}()
	log.Printf("[STARTUP] PID file created: %s (PID %d)", pidFilePath, os.Getpid())

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("[SHUTDOWN] Received signal %v, cleaning up...", sig)
		if err := pf.Release(); err != nil {
			log.Printf("Warning: failed to remove PID file: %v", err)
		}
		os.Exit(0)
	}()

	// Initialize macOS application with timeout protection
	log.Println("[STARTUP] Initializing macOS application...")

	// Start heartbeat ticker in background to show initialization progress
	heartbeatDone := make(chan bool, 1)
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatDone:
				return
			case <-ticker.C:
				log.Println("[STARTUP] ...UI initialization in progress...")
			}
		}
	}()

	// Initialize GUI on main thread (REQUIRED by macOS AppKit)
	log.Println("[STARTUP] Creating SharedApplication...")
	app = appkit.Application_SharedApplication()
	app.SetActivationPolicy(appkit.ApplicationActivationPolicyAccessory)
	log.Println("[STARTUP] macOS Application initialized")

	// Create status bar app
	log.Println("[STARTUP] Creating status bar app...")
	installDir := filepath.Dir(executablePath())
	checker := autoupdate.NewUpdateChecker("veilhq", "veil", Version, installDir)
	if detCfg, err := config.LoadDetectionConfig(); err == nil {
		checker.SetChannel(autoupdate.ChannelForSettings(detCfg.AllowDevUpdates))
	}
	about := macui.NewAboutWindow(Version, checker)
	statusBarApp = macui.NewStatusBarApp(about, func() {
		app.Terminate(nil)
	})
	if statusBarApp == nil {
		log.Fatal("[STARTUP] ERROR: failed to create status bar app: returned nil")
	}
	log.Println("[STARTUP] Status bar app created successfully")

	// Overlay window: the daemon only tracks intended presentation; this
	// process owns the real NSWindow and applies that state to it.
	log.Println("[STARTUP] Creating overlay window...")
	uiSettings, err := config.LoadSettings()
	if err != nil {
		log.Printf("[STARTUP] Settings unavailable: %v, using defaults", err)
		uiSettings = config.DefaultSettings()
	}
	overlay = macui.NewOverlayWindow()
	overlayCtl = conceal.NewController(conceal.NewWindowBackend(overlay.Window()),
		uiSettings.Opacity, uiSettings.ConcealedOpacity, nil)
	log.Println("[STARTUP] Overlay window created")

	// Connect to the daemon's status bridge; the status file watcher below
	// covers the window where the daemon is down or the bridge port is busy.
	log.Println("[STARTUP] Connecting to daemon bridge...")
	bridgeClient = uibridge.NewClient(uibridge.DefaultAddr)
	bridgeClient.OnStatus(func(snap ipc.StatusSnapshot) {
		s := snap
		dispatch.MainQueue().DispatchAsync(func() {
			applyStatus(&s)
		})
	})
	if err := bridgeClient.Connect(); err != nil {
		log.Printf("[STARTUP] Bridge unavailable: %v (will keep retrying, file watcher active)", err)
	}
	statusBarApp.SetCommandSender(func(cmd ipc.Command) error {
		return bridgeClient.SendCommand(cmd)
	})

	// Bind the activation shortcut; a failed registration leaves the menu
	// item as the only trigger.
	if err := bindActivationShortcut(); err != nil {
		log.Printf("[STARTUP] Hotkey not bound: %v", err)
	}

	// Stop heartbeat ticker
	heartbeatDone <- true
	log.Println("[STARTUP] UI initialization completed")

	// Load initial status
	log.Println("[STARTUP] Loading initial status...")
	updateStatusFromFile()

	// Start watching status file in background
	log.Println("[STARTUP] Starting status file watcher...")
	go watchStatusFile()

	log.Println("===========================================")
	log.Println("[RUNNING] Veil UI is running")
	log.Println("===========================================")

	// Run the application event loop
	app.Run()
}

func executablePath() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return exe
}

// bindActivationShortcut registers the configured shortcut and fires an
// analyze command on every press.
func bindActivationShortcut() error {
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	combo, err := hotkey.Parse(settings.ActivationShortcut)
	if err != nil {
		return err
	}

	binding, err := hotkey.Bind(combo)
	if err != nil {
		return err
	}
	log.Printf("[STARTUP] Activation shortcut bound: %s", combo)

	go func() {
		for range binding.Keydown() {
			log.Printf("Shortcut %s pressed: requesting analysis", combo)
			sendCommand(ipc.CmdAnalyze)
		}
	}()
	return nil
}

// sendCommand routes through the bridge with a command-file fallback.
func sendCommand(cmd ipc.Command) {
	if bridgeClient != nil && bridgeClient.IsConnected() {
		if err := bridgeClient.SendCommand(cmd); err == nil {
			return
		}
	}
	if err := ipc.WriteCommand(cmd); err != nil {
		log.Printf("Failed to send command %s: %v", cmd, err)
	}
}

// applyStatus pushes a snapshot into the menu bar and onto the overlay
// window: content and show/hide first, then the concealment state the
// daemon decided on. Must run on the main thread.
func applyStatus(status *ipc.StatusSnapshot) {
	statusBarApp.UpdateStatus(status)

	text, visible := macui.OverlayContent(status)
	overlay.SetText(text)
	overlay.SetShown(visible)
	overlayCtl.Apply(status != nil && status.Concealment == conceal.StateConcealed)
}

// updateStatusFromFile reads status.json and updates the UI. Used at startup
// and whenever the bridge is down.
func updateStatusFromFile() {
	status, err := ipc.ReadStatus()
	if err != nil {
		// If status file doesn't exist yet, use a placeholder so the icon
		// shows something sensible.
		if os.IsNotExist(err) {
			applyStatus(&ipc.StatusSnapshot{
				Mode:          ipc.ModeAuto,
				WindowVisible: true,
				LastAction:    "initialized",
				Timestamp:     time.Now(),
			})
			return
		}
		log.Printf("Failed to read status: %v", err)
		return
	}

	applyStatus(status)
}

// watchStatusFile monitors status.json for changes. The bridge delivers the
// same snapshots faster; the file watch is the fallback path.
func watchStatusFile() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Printf("Failed to close watcher: %v", err)
		}
	}()

	statusPath := ipc.StatusPath()
	statusDir := filepath.Dir(statusPath)

	// Ensure directory exists
	if err := os.MkdirAll(statusDir, 0755); err != nil {
		log.Printf("Warning: failed to create status directory: %v", err)
	}

	// Watch the directory (not the file, as it may be recreated)
	if err := watcher.Add(statusDir); err != nil {
		log.Fatal(err)
	}

	log.Println("Watching status file for changes...")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Name == statusPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				// Skip when the bridge is live; it already delivered this update.
				if bridgeClient != nil && bridgeClient.IsConnected() {
					continue
				}

				// Small delay to ensure write is complete
				time.Sleep(50 * time.Millisecond)

				dispatch.MainQueue().DispatchAsync(updateStatusFromFile)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}
