package macui

import (
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/progrium/darwinkit/macos/appkit"
	"github.com/progrium/darwinkit/objc"

	"github.com/veilhq/veil/internal/conceal"
	"github.com/veilhq/veil/internal/ipc"
)

// CommandSender delivers a command to the daemon. The UI wires the WebSocket
// bridge here; sendCommand falls back to the command file when it fails.
type CommandSender func(ipc.Command) error

// StatusBarApp owns the NSStatusItem, its menu, and the current status icon.
type StatusBarApp struct {
	item          appkit.StatusItem
	currentStatus *ipc.StatusSnapshot
	sender        CommandSender
	about         *AboutWindow
	settings      *SettingsWindow
	onQuit        func()
}

// NewStatusBarApp creates the menu bar item with its full menu.
// Must be called on the main thread after the shared application exists.
func NewStatusBarApp(about *AboutWindow, onQuit func()) *StatusBarApp {
	app := &StatusBarApp{
		about:    about,
		settings: NewSettingsWindow(),
		onQuit:   onQuit,
	}

	app.item = appkit.StatusBar_SystemStatusBar().StatusItemWithLength(appkit.VariableStatusItemLength)
	button := app.item.Button()
	button.SetImage(tintedMenubarIcon(appkit.Color_SystemGrayColor()))
	button.SetToolTip("Veil: starting...")

	app.item.SetMenu(app.buildMenu())
	return app
}

// SetCommandSender replaces the default file-based transport.
func (app *StatusBarApp) SetCommandSender(sender CommandSender) {
	app.sender = sender
}

func (app *StatusBarApp) buildMenu() appkit.Menu {
	menu := appkit.NewMenuWithTitle("Veil")

	menu.AddItem(appkit.NewMenuItemWithAction("Analyze Screen", "a", func(sender objc.Object) {
		app.sendCommand(ipc.CmdAnalyze)
	}))
	menu.AddItem(appkit.NewMenuItemWithAction("Ask a Question", "k", func(sender objc.Object) {
		go app.askQuestion()
	}))
	menu.AddItem(appkit.MenuItem_SeparatorItem())

	menu.AddItem(appkit.NewMenuItemWithAction("Conceal Now", "c", func(sender objc.Object) {
		app.sendCommand(ipc.CmdConceal)
	}))
	menu.AddItem(appkit.NewMenuItemWithAction("Reveal", "r", func(sender objc.Object) {
		app.sendCommand(ipc.CmdReveal)
	}))
	menu.AddItem(appkit.NewMenuItemWithAction("Show/Hide Window", "w", func(sender objc.Object) {
		app.sendCommand(ipc.CmdToggleWindow)
	}))
	menu.AddItem(appkit.MenuItem_SeparatorItem())

	menu.AddItem(appkit.NewMenuItemWithAction("Auto Mode", "", func(sender objc.Object) {
		app.sendCommand(ipc.CmdAuto)
	}))
	menu.AddItem(appkit.NewMenuItemWithAction("Manual Mode", "", func(sender objc.Object) {
		app.sendCommand(ipc.CmdManual)
	}))
	menu.AddItem(appkit.NewMenuItemWithAction("Pause Detection", "", func(sender objc.Object) {
		app.sendCommand(ipc.CmdPause)
	}))
	menu.AddItem(appkit.MenuItem_SeparatorItem())

	menu.AddItem(appkit.NewMenuItemWithAction("Settings...", "", func(sender objc.Object) {
		go func() {
			if err := app.settings.Show(); err != nil {
				log.Printf("Settings window error: %v", err)
			}
		}()
	}))
	if app.about != nil {
		menu.AddItem(appkit.NewMenuItemWithAction("Check for Updates", "", func(sender objc.Object) {
			go app.about.RunUpdateCheck()
		}))
		menu.AddItem(appkit.NewMenuItemWithAction("About Veil", "", func(sender objc.Object) {
			go func() {
				if err := app.about.Show(); err != nil {
					log.Printf("About window error: %v", err)
				}
			}()
		}))
	}
	menu.AddItem(appkit.MenuItem_SeparatorItem())

	menu.AddItem(appkit.NewMenuItemWithAction("Quit Veil", "q", func(sender objc.Object) {
		app.sendCommand(ipc.CmdQuit)
		if app.onQuit != nil {
			app.onQuit()
		}
	}))

	return menu
}

// UpdateStatus refreshes the icon and tooltip from a fresh status snapshot.
// Must be called on the main thread.
func (app *StatusBarApp) UpdateStatus(status *ipc.StatusSnapshot) {
	app.currentStatus = status

	button := app.item.Button()
	button.SetImage(iconForStatus(status))
	button.SetToolTip(tooltipForStatus(status))
}

// tooltipForStatus renders a one-line summary for the menu bar tooltip.
func tooltipForStatus(status *ipc.StatusSnapshot) string {
	if status == nil {
		return "Veil: waiting for daemon"
	}
	if status.LastError != "" {
		return fmt.Sprintf("Veil: error - %s", status.LastError)
	}
	state := "visible"
	if status.Concealment == conceal.StateConcealed {
		state = fmt.Sprintf("concealed (%s)", status.Technique)
	}
	if !status.WindowVisible {
		state = "hidden"
	}
	return fmt.Sprintf("Veil: %s mode, overlay %s", status.Mode, state)
}

// askQuestion collects a free-form question through an AppleScript dialog,
// stages it in query.json, and tells the daemon to answer it. Runs off the
// main thread; osascript blocks until the user responds.
func (app *StatusBarApp) askQuestion() {
	script := `
tell application "System Events"
	activate
	set q to display dialog "Ask the assistant:" default answer "" with title "Veil" giving up after 3600
	return text returned of q
end tell
`
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		log.Printf("Ask dialog dismissed: %v", err)
		return
	}
	prompt := strings.TrimSpace(string(output))
	if prompt == "" {
		return
	}

	if err := ipc.WriteQuery(&ipc.Query{Kind: ipc.QueryAdvice, Prompt: prompt}); err != nil {
		log.Printf("Failed to stage query: %v", err)
		return
	}
	app.sendCommand(ipc.CmdAsk)
}

// sendCommand delivers a command via the configured sender, falling back to
// the command file so the daemon stays controllable when the bridge is down.
func (app *StatusBarApp) sendCommand(cmd ipc.Command) {
	if app.sender != nil {
		if err := app.sender(cmd); err == nil {
			log.Printf("✓ Command sent: %s", cmd)
			return
		} else {
			log.Printf("Bridge send failed for %s: %v, using command file", cmd, err)
		}
	}
	if err := ipc.WriteCommand(cmd); err != nil {
		fmt.Printf("Error sending command %s: %v\n", cmd, err)
	} else {
		log.Printf("✓ Command sent: %s", cmd)
	}
}
