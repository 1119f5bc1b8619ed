package ipc

import (
	"os"
	"path/filepath"
	"strings"
)

// Command represents user commands from UI to daemon
type Command string

const (
	CmdConceal      Command = "conceal"       // Conceal the overlay immediately
	CmdReveal       Command = "reveal"        // Restore normal presentation
	CmdToggle       Command = "toggle"        // Toggle concealment state
	CmdToggleWindow Command = "toggle-window" // Show/hide the overlay entirely
	CmdAuto         Command = "auto"          // Switch to auto mode
	CmdPause        Command = "pause"         // Switch to paused mode
	CmdManual       Command = "manual"        // Switch to manual mode (detect but never auto-conceal)
	CmdAnalyze      Command = "analyze"       // Capture the screen and run AI analysis
	CmdAsk          Command = "ask"           // Answer the text query staged in query.json
	CmdSimulateOn   Command = "simulate-on"   // Force the detector to report sharing (dev)
	CmdSimulateOff  Command = "simulate-off"  // Clear the forced detection override (dev)
	CmdQuit         Command = "quit"          // Shutdown daemon
)

// WriteCommand writes a command to ~/.cache/veil/cmd.txt
func WriteCommand(cmd Command) error {
	cacheDir := filepath.Join(os.Getenv("HOME"), ".cache", "veil")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return err
	}

	cmdPath := filepath.Join(cacheDir, "cmd.txt")
	return os.WriteFile(cmdPath, []byte(string(cmd)), 0644)
}

// CommandPath returns the command file location, for watchers.
func CommandPath() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "veil", "cmd.txt")
}

// ReadCommand reads and clears ~/.cache/veil/cmd.txt
// Returns empty string if no command or file doesn't exist
func ReadCommand() (Command, error) {
	cmdPath := CommandPath()

	// Read the command
	data, err := os.ReadFile(cmdPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // No command pending
		}
		return "", err
	}

	// Clear the file immediately to prevent re-execution
	if err := os.WriteFile(cmdPath, []byte(""), 0644); err != nil {
		return "", err
	}

	// Parse and validate command
	cmd := Command(strings.TrimSpace(string(data)))

	// Validate it's a known command
	switch cmd {
	case CmdConceal, CmdReveal, CmdToggle, CmdToggleWindow, CmdAuto, CmdPause,
		CmdManual, CmdAnalyze, CmdAsk, CmdSimulateOn, CmdSimulateOff, CmdQuit:
		return cmd, nil
	case "":
		return "", nil // Empty file
	default:
		// Invalid command - ignore it
		return "", nil
	}
}
