package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/veilhq/veil/internal/assist"
	"github.com/veilhq/veil/internal/capture"
	"github.com/veilhq/veil/internal/conceal"
	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/detector"
	"github.com/veilhq/veil/internal/diaglog"
	"github.com/veilhq/veil/internal/grants"
	"github.com/veilhq/veil/internal/ipc"
	"github.com/veilhq/veil/internal/pidfile"
	"github.com/veilhq/veil/internal/poller"
	"github.com/veilhq/veil/internal/report"
	"github.com/veilhq/veil/internal/statemachine"
	"github.com/veilhq/veil/internal/uibridge"
	"github.com/veilhq/veil/internal/validation"
)

const logPrefix = "[veil-core]"

var (
	// Version is set at build time via -ldflags "-X main.Version=..."
	Version = "dev"

	outLog *log.Logger
	errLog *log.Logger

	// Core components, wired during startup.
	detCfg       *config.DetectionConfig
	settings     *config.Settings
	chain        *detector.Chain
	stateMachine *statemachine.StateMachine
	controller   *conceal.Controller
	registry     *assist.Registry
	diagLogger   *diaglog.Logger
	bridge       *uibridge.Server

	capPrimary  capture.Capturer
	capFallback capture.Capturer

	// stateMu guards the state machine and controller: verdicts arrive on the
	// poller goroutine, commands on the watcher and bridge goroutines.
	stateMu       sync.Mutex
	lastVerdict   detector.Verdict
	windowVisible = true
	lastAction    string
	lastError     string

	// assistMu guards the in-flight analysis flag and the last answer.
	assistMu     sync.Mutex
	assistBusy   bool
	assistErr    string
	lastAnalysis string

	// shutdownCh is closed when a quit command arrives.
	shutdownCh   = make(chan struct{})
	shutdownOnce sync.Once

	// Logging counters
	noSharingLogCounter int
)

func debugEnabled() bool {
	return os.Getenv("VEIL_DEBUG") != ""
}

func diagLogPath() string {
	if p := os.Getenv("VEIL_LOG_PATH"); p != "" {
		return p
	}
	return "/tmp/veil-debug.log"
}

func main() {
	// --export-diag subcommand: read log, write bundle, exit.
	if len(os.Args) > 1 && os.Args[1] == "--export-diag" {
		diaglog.Version = Version
		path, n, err := diaglog.Export(diagLogPath(), ".")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			if os.IsNotExist(err) {
				fmt.Fprintln(os.Stderr, "hint: run with VEIL_DEBUG=1 to enable diagnostic logging")
				os.Exit(1)
			}
			os.Exit(2)
		}
		fmt.Printf("Wrote: %s (%d lines)\n", path, n)
		os.Exit(0)
	}

	// Recover from any panics and log them
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC in veil-core: %v\n", r)
			if outLog != nil {
				outLog.Printf("PANIC: %v", r)
			}
			if errLog != nil {
				errLog.Printf("PANIC: %v", r)
			}
			os.Exit(1)
		}
	}()

	// Initialize logging
	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	outLog.Println("===========================================")
	outLog.Println("Starting Veil Core v" + Version + "...")
	outLog.Printf("PID: %d", os.Getpid())
	outLog.Printf("Timestamp: %s", time.Now().Format(time.RFC3339))
	outLog.Println("===========================================")

	// Check for duplicate instances
	pidFilePath := pidfile.PathFor("veil-core")
	outLog.Printf("Checking PID file: %s", pidFilePath)
	pf, err := pidfile.Acquire(pidFilePath)
	if err != nil {
		errLog.Printf("Failed to create PID file: %v", err)
		errLog.Println("Another instance of veil-core may already be running.")
		errLog.Printf("If you're sure no other instance is running, remove: %s", pidFilePath)
		os.Exit(1)
	}
	defer func() {
		outLog.Println("Cleaning up before exit...")
		if err := pf.Release(); err != nil {
			errLog.Printf("Warning: failed to remove PID file: %v", err)
		}
	}()
	outLog.Printf("PID file created: %s (PID %d)", pidFilePath, os.Getpid())

	// Load configuration
	outLog.Println("[STARTUP] Loading detection configuration...")
	detCfg, err = config.LoadDetectionConfig()
	if err != nil {
		errLog.Printf("Failed to load detection config: %v", err)
		os.Exit(1)
	}
	outLog.Printf("[STARTUP] Loaded detection config: %d rules, poll_interval=%ds, thresholds=%d/%d",
		len(detCfg.Rules), detCfg.PollInterval, detCfg.EngageThreshold, detCfg.ReleaseThreshold)

	outLog.Println("[STARTUP] Loading settings...")
	settings, err = config.LoadSettings()
	if err != nil {
		errLog.Printf("Failed to load settings: %v", err)
		os.Exit(1)
	}
	outLog.Printf("[STARTUP] Settings: shortcut=%s, opacity=%.2f/%.2f, backend=%s",
		settings.ActivationShortcut, settings.Opacity, settings.ConcealedOpacity, settings.AssistBackend)

	// Environment checks: warn and continue, the way a doctor command would.
	outLog.Println("[STARTUP] Checking environment...")
	envCheck := validation.CheckEnvironment(detCfg, settings)
	outLog.Printf("[STARTUP] Environment: %s", envCheck.Message)
	if !envCheck.OK {
		errLog.Println("[STARTUP] WARNING: environment check found issues:")
		for _, issue := range envCheck.Issues {
			errLog.Printf("  - %s", issue)
		}
		for _, fix := range envCheck.Fixes {
			errLog.Printf("  fix: %s", fix)
		}
		errLog.Println("Continuing anyway, but some features may not work.")
	}

	// Diagnostic logging is opt-in; without VEIL_DEBUG all entries are dropped.
	if debugEnabled() {
		diagLogger, err = diaglog.New(diagLogPath())
		if err != nil {
			errLog.Printf("[STARTUP] WARNING: could not open diagnostic log at %s: %v (continuing)", diagLogPath(), err)
			diagLogger = diaglog.NewNoOp()
		} else {
			outLog.Printf("[STARTUP] Diagnostic logging enabled: %s", diagLogPath())
		}
	} else {
		diagLogger = diaglog.NewNoOp()
	}
	defer func() { _ = diagLogger.Close() }()
	diaglog.Version = Version

	// Assist backends: primary per settings, compat endpoint as fallback
	// when one is configured.
	outLog.Println("[STARTUP] Initializing assist backends...")
	registry = assist.NewRegistry()
	if openaiBackend, err := assist.NewOpenAIBackend(settings.MaxTokens); err != nil {
		errLog.Printf("[STARTUP] openai backend unavailable: %v", err)
	} else {
		registry.Register("openai", openaiBackend)
	}
	if settings.CompatBaseURL != "" {
		registry.Register("compat", assist.NewCompatBackend(settings.CompatBaseURL, "", settings.MaxTokens))
	}
	switch settings.AssistBackend {
	case "compat":
		if _, ok := registry.Get("compat"); ok {
			registry.SetPrimary("compat")
		}
		if _, ok := registry.Get("openai"); ok {
			registry.SetFallback("openai")
		}
	default:
		if _, ok := registry.Get("openai"); ok {
			registry.SetPrimary("openai")
		}
		if _, ok := registry.Get("compat"); ok {
			registry.SetFallback("compat")
		}
	}
	checkAssistHealth()

	// Screenshot capture: OS command first, in-process native fallback.
	capPrimary = capture.NewOSCommand()
	capFallback = capture.NewNative()
	if err := capPrimary.HealthCheck(); err != nil {
		errLog.Printf("[STARTUP] capture tool check: %v (native fallback available)", err)
	}

	// Capture-grant store: missing or locked database just removes one check.
	var grantSource detector.GrantSource
	if store, err := grants.Open(grants.DefaultPath()); err != nil {
		outLog.Printf("[STARTUP] capture-grant database unavailable: %v", err)
	} else {
		grantSource = store
		defer func() { _ = store.Close() }()
	}

	// Detection chain and concealment plumbing. The daemon owns no native
	// window; the controller tracks intended presentation in memory and the
	// UI process applies it to the real overlay.
	chain = detector.NewChain(detCfg, detector.NewPlatformProbe(), grantSource, diagLogger)
	stateMachine = statemachine.NewStateMachine(detCfg)
	controller = conceal.NewController(conceal.NewMemoryBackend(), settings.Opacity, settings.ConcealedOpacity, diagLogger)
	outLog.Printf("[STARTUP] State machine initialized in %s mode", stateMachine.CurrentMode())

	// Status bridge for the UI process. Startup failure is not fatal: the
	// status file and command file keep working without it.
	bridge = uibridge.NewServer(uibridge.DefaultAddr, func(cmd ipc.Command) {
		handleCommand(cmd)
	})
	bridge.SetLogger(diagLogger)
	if err := bridge.Start(); err != nil {
		errLog.Printf("[STARTUP] UI bridge unavailable: %v (file-based IPC only)", err)
		bridge = nil
	} else {
		outLog.Printf("[STARTUP] UI bridge listening on %s", uibridge.DefaultAddr)
		defer bridge.Stop()
	}

	// Write initial status
	outLog.Println("[STARTUP] Writing initial status...")
	if err := publishStatus(); err != nil {
		errLog.Printf("Failed to write initial status: %v", err)
	}

	// Start command file watcher
	outLog.Println("[STARTUP] Starting command file watcher...")
	go watchCommands()

	// Detection loop: fixed interval, one evaluation in flight, late ticks
	// dropped rather than queued.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := poller.New(detCfg.PollDuration(), chain, onVerdict, diagLogger)
	go p.Run(ctx)

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	outLog.Println("[STARTUP] Signal handlers registered (SIGINT, SIGTERM)")

	outLog.Printf("[STARTUP] Detection loop running (polling every %ds)...", detCfg.PollInterval)
	outLog.Println("===========================================")
	outLog.Println("[RUNNING] Veil Core is running and monitoring")

	select {
	case <-sigChan:
		outLog.Printf("[SHUTDOWN] Received shutdown signal at %s", time.Now().Format(time.RFC3339))
	case <-shutdownCh:
		outLog.Println("[SHUTDOWN] Quit command received")
	}
	cancel()

	// Leave the overlay visible on exit; a dead daemon must not strand the
	// user with a dimmed window.
	stateMu.Lock()
	if stateMachine.IsConcealed() {
		outLog.Println("[SHUTDOWN] Revealing overlay before shutdown...")
		controller.Disengage()
		stateMachine.MarkRevealed()
	}
	stateMu.Unlock()
	if err := publishStatus(); err != nil {
		errLog.Printf("Failed to write final status: %v", err)
	}

	outLog.Println("[SHUTDOWN] Shutting down gracefully")
	outLog.Println("===========================================")
}

// onVerdict is the poller callback: debounce through the state machine,
// drive the controller on transitions, publish the result.
func onVerdict(v detector.Verdict) {
	logVerdict(v)

	stateMu.Lock()
	lastVerdict = v
	shouldConceal, shouldReveal := stateMachine.ProcessVerdict(v)
	if shouldConceal {
		controller.Engage()
		stateMachine.MarkConcealed(v.Source)
		lastAction = fmt.Sprintf("concealed (%s via %s)", controller.Technique(), v.Source)
		outLog.Printf("Concealment ENGAGED (source=%s, technique=%s)", v.Source, controller.Technique())
	}
	if shouldReveal {
		controller.Disengage()
		stateMachine.MarkRevealed()
		lastAction = "revealed"
		outLog.Println("Concealment RELEASED")
	}
	stateMu.Unlock()

	if err := publishStatus(); err != nil {
		errLog.Printf("Failed to write status: %v", err)
	}
}

// logVerdict logs detection details for debugging
func logVerdict(v detector.Verdict) {
	if v.Sharing {
		outLog.Printf("Detection: SHARING DETECTED (source=%s, detail=%q, signals=%d)",
			v.Source, v.Detail, len(v.Signals))
		noSharingLogCounter = 0
	} else {
		// Log "no sharing" every 20 polls (~40s) to reduce spam
		noSharingLogCounter++
		if noSharingLogCounter >= 20 {
			outLog.Printf("Detection: no sharing (signals=%d)", len(v.Signals))
			noSharingLogCounter = 0
		}
	}
}

// publishStatus writes status.json and pushes the same snapshot over the
// bridge so connected UIs update without polling the file.
func publishStatus() error {
	stateMu.Lock()
	assistMu.Lock()
	status := ipc.StatusSnapshot{
		Mode:            stateMachine.CurrentMode(),
		Verdict:         lastVerdict,
		Concealment:     controller.State(),
		Technique:       controller.Technique(),
		Visual:          controller.Visual(),
		WindowVisible:   windowVisible,
		DetectionStreak: stateMachine.DetectionStreak(),
		AbsenceStreak:   stateMachine.AbsenceStreak(),
		AssistBusy:      assistBusy,
		AnalysisText:    lastAnalysis,
		Override:        chain.Override(),
		LastAction:      lastAction,
		LastError:       lastError,
		SessionID:       stateMachine.SessionID(),
		Timestamp:       time.Now(),
	}
	assistMu.Unlock()
	stateMu.Unlock()

	if bridge != nil {
		bridge.Broadcast(status)
	}
	return ipc.WriteStatus(&status)
}

// watchCommands monitors cmd.txt for manual control commands
func watchCommands() {
	cmdPath := ipc.CommandPath()
	cmdDir := filepath.Dir(cmdPath)
	if err := os.MkdirAll(cmdDir, 0755); err != nil {
		errLog.Printf("Failed to create command directory: %v", err)
	}

	// Try to use fsnotify for efficient file watching
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errLog.Printf("fsnotify not available, falling back to polling: %v", err)
		watchCommandsWithPolling(cmdPath)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			errLog.Printf("Failed to close watcher: %v", err)
		}
	}()

	if err := watcher.Add(cmdDir); err != nil {
		errLog.Printf("Failed to watch command directory, falling back to polling: %v", err)
		watchCommandsWithPolling(cmdPath)
		return
	}

	outLog.Println("Command watcher started (using fsnotify)")

	// Add fallback polling ticker in case fsnotify fails
	pollTicker := time.NewTicker(1 * time.Second)
	defer pollTicker.Stop()

	lastCheckTime := time.Now()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				outLog.Println("fsnotify watcher closed, switching to polling")
				watchCommandsWithPolling(cmdPath)
				return
			}

			if event.Name == cmdPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				// Small delay to ensure write is complete
				time.Sleep(50 * time.Millisecond)

				cmd, err := ipc.ReadCommand()
				if err != nil || cmd == "" {
					continue
				}

				handleCommand(cmd)
				lastCheckTime = time.Now()
			}

		case <-pollTicker.C:
			// Fallback polling: check for commands if file was modified since last check
			if fileInfo, err := os.Stat(cmdPath); err == nil {
				if fileInfo.ModTime().After(lastCheckTime) {
					time.Sleep(50 * time.Millisecond) // Ensure write is complete

					cmd, err := ipc.ReadCommand()
					if err == nil && cmd != "" {
						handleCommand(cmd)
						lastCheckTime = time.Now()
					}
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				outLog.Println("fsnotify error channel closed, switching to polling")
				watchCommandsWithPolling(cmdPath)
				return
			}
			errLog.Printf("File watcher error: %v", err)
		}
	}
}

// watchCommandsWithPolling is a pure polling-based fallback for command monitoring
func watchCommandsWithPolling(cmdPath string) {
	outLog.Println("Command watcher started (using polling fallback, 1s interval)")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastCheckTime := time.Now()

	for range ticker.C {
		// Check if file was modified since last check
		fileInfo, err := os.Stat(cmdPath)
		if err != nil {
			continue // File doesn't exist yet, keep polling
		}

		if fileInfo.ModTime().After(lastCheckTime) {
			time.Sleep(50 * time.Millisecond) // Ensure write is complete

			cmd, err := ipc.ReadCommand()
			if err == nil && cmd != "" {
				handleCommand(cmd)
			}
			lastCheckTime = time.Now()
		}
	}
}

// handleCommand processes manual control commands from the command file or
// the UI bridge.
func handleCommand(cmd ipc.Command) {
	outLog.Printf("Received command: %s", cmd)

	switch cmd {
	case ipc.CmdConceal:
		stateMu.Lock()
		if err := stateMachine.ForceConceal(); err != nil {
			stateMu.Unlock()
			errLog.Printf("ForceConceal rejected: %v", err)
			return
		}
		controller.Engage()
		lastAction = "concealed (manual)"
		stateMu.Unlock()

	case ipc.CmdReveal:
		stateMu.Lock()
		if err := stateMachine.ForceReveal(); err != nil {
			stateMu.Unlock()
			errLog.Printf("ForceReveal rejected: %v", err)
			return
		}
		controller.Disengage()
		lastAction = "revealed (manual)"
		stateMu.Unlock()

	case ipc.CmdToggle:
		stateMu.Lock()
		if stateMachine.IsConcealed() {
			if err := stateMachine.ForceReveal(); err == nil {
				controller.Disengage()
				lastAction = "revealed (toggle)"
			}
		} else {
			if err := stateMachine.ForceConceal(); err == nil {
				controller.Engage()
				lastAction = "concealed (toggle)"
			}
		}
		stateMu.Unlock()

	case ipc.CmdToggleWindow:
		stateMu.Lock()
		windowVisible = !windowVisible
		lastAction = fmt.Sprintf("window visible=%t", windowVisible)
		stateMu.Unlock()
		outLog.Printf("Overlay window visible: %t", windowVisible)

	case ipc.CmdAuto:
		stateMu.Lock()
		stateMachine.SetMode(ipc.ModeAuto)
		stateMu.Unlock()
		outLog.Println("Mode changed to AUTO")

	case ipc.CmdPause:
		stateMu.Lock()
		stateMachine.SetMode(ipc.ModePaused)
		stateMu.Unlock()
		outLog.Println("Mode changed to PAUSED")

	case ipc.CmdManual:
		stateMu.Lock()
		stateMachine.SetMode(ipc.ModeManual)
		stateMu.Unlock()
		outLog.Println("Mode changed to MANUAL (detection tracked, no auto-conceal)")

	case ipc.CmdAnalyze:
		go runAnalysis()
		return // runAnalysis publishes its own status updates

	case ipc.CmdAsk:
		go runQuery()
		return // runQuery publishes its own status updates

	case ipc.CmdSimulateOn:
		if !debugEnabled() {
			errLog.Println("simulate-on ignored: set VEIL_DEBUG=1 to enable the detection override")
			return
		}
		chain.SetOverride(true)
		outLog.Println("Detection override: SHARING (simulated)")

	case ipc.CmdSimulateOff:
		if !debugEnabled() {
			errLog.Println("simulate-off ignored: set VEIL_DEBUG=1 to enable the detection override")
			return
		}
		chain.ClearOverride()
		outLog.Println("Detection override cleared")

	case ipc.CmdQuit:
		outLog.Println("Quit command received - shutting down")
		shutdownOnce.Do(func() { close(shutdownCh) })
		return

	default:
		errLog.Printf("Unknown command: %s", cmd)
		return
	}

	// Immediately publish so the UI reflects the change
	if err := publishStatus(); err != nil {
		errLog.Printf("Failed to write status after command: %v", err)
	}
}

// runAnalysis captures the screen, sends it to the assist backend, and
// writes the answer as a report. At most one analysis runs at a time.
func runAnalysis() {
	assistMu.Lock()
	if assistBusy {
		assistMu.Unlock()
		outLog.Println("Analysis already in flight, ignoring request")
		return
	}
	assistBusy = true
	assistErr = ""
	assistMu.Unlock()

	defer func() {
		assistMu.Lock()
		assistBusy = false
		assistMu.Unlock()
		if err := publishStatus(); err != nil {
			errLog.Printf("Failed to write status after analysis: %v", err)
		}
	}()

	if err := publishStatus(); err != nil {
		errLog.Printf("Failed to write status at analysis start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), assist.DefaultTimeout+15*time.Second)
	defer cancel()

	shot, err := capture.Take(ctx, capPrimary, capFallback, diagLogger)
	if err != nil {
		recordAssistError(fmt.Sprintf("screenshot failed: %v", err))
		return
	}
	defer func() { _ = os.Remove(shot.Path) }()

	reqPayload := map[string]interface{}{"screenshot": shot.Path}
	if win := chain.ActiveWindow(ctx); win != nil {
		reqPayload["active_window"] = win.App
		reqPayload["window_title"] = win.Title
	}
	diagLogger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentAssist,
		Event:     diaglog.EventAssistRequest,
		Payload:   reqPayload,
	})

	started := time.Now()
	resp, err := registry.AnalyzeImageWithFallback(ctx, assist.ImageRequest{
		PNGPath:  shot.Path,
		Prompt:   "Analyze the coding problem on this screen and explain how to solve it.",
		Language: settings.Language,
	})
	if err != nil {
		recordAssistError(fmt.Sprintf("analysis failed: %v", err))
		return
	}

	stateMu.Lock()
	sessionID := stateMachine.SessionID()
	stateMu.Unlock()

	a := &report.Analysis{
		SessionID:  sessionID,
		CreatedAt:  started,
		Prompt:     "Screen analysis",
		Language:   settings.Language,
		Backend:    resp.Backend,
		Model:      resp.Model,
		Screenshot: true,
		Elapsed:    resp.Elapsed,
		Text:       resp.Text,
	}
	reportDir := filepath.Join(os.Getenv("HOME"), "Documents", "veil")
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		recordAssistError(fmt.Sprintf("report dir: %v", err))
		return
	}
	basePath := report.BasePath(reportDir, started, "Screen-Analysis")
	if err := report.WriteAll(basePath, a, []string{"md", "json"}); err != nil {
		recordAssistError(fmt.Sprintf("report write: %v", err))
		return
	}

	assistMu.Lock()
	lastAnalysis = resp.Text
	assistMu.Unlock()
	stateMu.Lock()
	lastAction = "analysis written: " + basePath + ".md"
	stateMu.Unlock()
	outLog.Printf("Analysis complete via %s in %s: %s.md", resp.Backend, resp.Elapsed, basePath)
}

// runQuery answers the text query staged by the UI in query.json. It shares
// the single-flight flag with runAnalysis so only one assist request is ever
// in flight.
func runQuery() {
	assistMu.Lock()
	if assistBusy {
		assistMu.Unlock()
		outLog.Println("Assist request already in flight, ignoring query")
		return
	}
	assistBusy = true
	assistErr = ""
	assistMu.Unlock()

	defer func() {
		assistMu.Lock()
		assistBusy = false
		assistMu.Unlock()
		if err := publishStatus(); err != nil {
			errLog.Printf("Failed to write status after query: %v", err)
		}
	}()

	if err := publishStatus(); err != nil {
		errLog.Printf("Failed to write status at query start: %v", err)
	}

	q, err := ipc.ReadQuery()
	if err != nil {
		recordAssistError(fmt.Sprintf("query read failed: %v", err))
		return
	}
	if q == nil {
		outLog.Println("Ask command with no staged query, ignoring")
		return
	}

	language := q.Language
	if language == "" {
		language = settings.Language
	}
	req := assist.Request{
		Kind:     assist.Kind(q.Kind),
		Prompt:   q.Prompt,
		Code:     q.Code,
		Language: language,
	}

	diagLogger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentAssist,
		Event:     diaglog.EventAssistRequest,
		Payload:   map[string]interface{}{"kind": string(q.Kind), "prompt_chars": len(q.Prompt)},
	})

	ctx, cancel := context.WithTimeout(context.Background(), assist.DefaultTimeout+15*time.Second)
	defer cancel()

	started := time.Now()
	resp, err := registry.CompleteWithFallback(ctx, req)
	if err != nil {
		recordAssistError(fmt.Sprintf("query failed: %v", err))
		return
	}

	stateMu.Lock()
	sessionID := stateMachine.SessionID()
	stateMu.Unlock()

	a := &report.Analysis{
		SessionID: sessionID,
		CreatedAt: started,
		Prompt:    q.Prompt,
		Language:  language,
		Backend:   resp.Backend,
		Model:     resp.Model,
		Elapsed:   resp.Elapsed,
		Text:      resp.Text,
	}
	reportDir := filepath.Join(os.Getenv("HOME"), "Documents", "veil")
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		recordAssistError(fmt.Sprintf("report dir: %v", err))
		return
	}
	basePath := report.BasePath(reportDir, started, "Question")
	if err := report.WriteAll(basePath, a, []string{"md", "json"}); err != nil {
		recordAssistError(fmt.Sprintf("report write: %v", err))
		return
	}

	assistMu.Lock()
	lastAnalysis = resp.Text
	assistMu.Unlock()
	stateMu.Lock()
	lastAction = "answer written: " + basePath + ".md"
	stateMu.Unlock()
	outLog.Printf("Query answered via %s in %s: %s.md", resp.Backend, resp.Elapsed, basePath)
}

// recordAssistError surfaces an analysis failure in logs and status.
func recordAssistError(msg string) {
	errLog.Print(msg)
	assistMu.Lock()
	assistErr = msg
	assistMu.Unlock()
	stateMu.Lock()
	lastError = msg
	stateMu.Unlock()
	for _, fix := range validation.SuggestedFixes(msg) {
		errLog.Printf("  fix: %s", fix)
	}
}

// checkAssistHealth probes every registered backend at startup.
func checkAssistHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range registry.Backends() {
		b, _ := registry.Get(name)
		if b == nil {
			continue
		}
		hs, err := b.HealthCheck(ctx)
		switch {
		case err != nil:
			errLog.Printf("[STARTUP] assist health check error (backend=%s): %v", name, err)
		case !hs.OK:
			errLog.Printf("[STARTUP] WARNING: assist backend %s unhealthy: %s", name, hs.Message)
		default:
			outLog.Printf("[STARTUP] assist backend %s healthy (latency=%s)", name, hs.Latency)
		}
	}
}

// initLogging sets up log files with rotation support
func initLogging() error {
	logDir := "/tmp"

	// Rotate logs if they exceed 10MB
	outLogPath := filepath.Join(logDir, "veil-core.out.log")
	errLogPath := filepath.Join(logDir, "veil-core.err.log")

	if err := rotateLogIfNeeded(outLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate out log: %v\n", err)
	}

	if err := rotateLogIfNeeded(errLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate err log: %v\n", err)
	}

	outFile, err := os.OpenFile(outLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	errFile, err := os.OpenFile(errLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	outLog = log.New(outFile, logPrefix+" ", log.LstdFlags)
	errLog = log.New(errFile, logPrefix+" ERROR: ", log.LstdFlags)

	return nil
}

// rotateLogIfNeeded rotates a log file if it exceeds maxSize bytes
func rotateLogIfNeeded(logPath string, maxSize int64) error {
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return nil // Log doesn't exist yet
	}
	if err != nil {
		return err
	}

	if info.Size() < maxSize {
		return nil // Log is under size limit
	}

	// Rotate: rename current log to .old, removing previous .old
	oldPath := logPath + ".old"
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old log: %w", err)
	}

	if err := os.Rename(logPath, oldPath); err != nil {
		return err
	}

	return nil
}
