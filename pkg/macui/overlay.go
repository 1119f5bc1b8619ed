package macui

import (
	"strings"

	"github.com/progrium/darwinkit/macos/appkit"
	"github.com/progrium/darwinkit/macos/foundation"

	"github.com/veilhq/veil/internal/ipc"
)

const (
	overlayWidth  = 460.0
	overlayHeight = 280.0
	overlayMargin = 16.0

	// NSFloatingWindowLevel; darwinkit does not export the level constants.
	floatingWindowLevel = appkit.WindowLevel(3)

	// overlayTextLimit keeps long answers readable on the panel; the full
	// text is always in the report file.
	overlayTextLimit = 1800
)

// OverlayWindow is the borderless floating panel that shows assistant
// answers. It joins every Space and stays put during Mission Control so it
// follows the user around while they work. Concealment is applied from the
// outside through conceal.NewWindowBackend(o.Window()); this type only owns
// content and plain show/hide.
type OverlayWindow struct {
	win   appkit.Window
	label appkit.TextField
	shown bool
}

// NewOverlayWindow builds the panel in the top-right corner of the main
// screen. Must be called on the main thread.
func NewOverlayWindow() *OverlayWindow {
	screen := appkit.Screen_MainScreen().VisibleFrame()
	rect := foundation.Rect{
		Origin: foundation.Point{
			X: screen.Origin.X + screen.Size.Width - overlayWidth - overlayMargin,
			Y: screen.Origin.Y + screen.Size.Height - overlayHeight - overlayMargin,
		},
		Size: foundation.Size{Width: overlayWidth, Height: overlayHeight},
	}

	win := appkit.NewWindowWithContentRectStyleMaskBackingDefer(
		rect, appkit.WindowStyleMaskBorderless, appkit.BackingStoreBuffered, false)
	win.SetLevel(floatingWindowLevel)
	win.SetCollectionBehavior(appkit.WindowCollectionBehaviorCanJoinAllSpaces |
		appkit.WindowCollectionBehaviorStationary |
		appkit.WindowCollectionBehaviorFullScreenAuxiliary)
	win.SetOpaque(false)
	win.SetBackgroundColor(appkit.Color_BlackColor().ColorWithAlphaComponent(0.85))
	win.SetHasShadow(true)
	win.SetIgnoresMouseEvents(true)

	label := appkit.NewLabel("")
	label.SetFrame(foundation.Rect{
		Origin: foundation.Point{X: overlayMargin, Y: overlayMargin},
		Size: foundation.Size{
			Width:  overlayWidth - 2*overlayMargin,
			Height: overlayHeight - 2*overlayMargin,
		},
	})
	label.SetTextColor(appkit.Color_WhiteColor())
	label.SetFont(appkit.Font_MonospacedSystemFontOfSizeWeight(12, appkit.FontWeightRegular))
	win.ContentView().AddSubview(label)

	return &OverlayWindow{win: win, label: label}
}

// Window exposes the NSWindow so the concealment backend can attach to it.
func (o *OverlayWindow) Window() appkit.Window {
	return o.win
}

// SetText replaces the panel content. Must be called on the main thread.
func (o *OverlayWindow) SetText(text string) {
	o.label.SetStringValue(text)
}

// SetShown orders the window in or out. OrderFrontRegardless keeps the
// panel from stealing key focus from whatever the user is typing in.
// Must be called on the main thread.
func (o *OverlayWindow) SetShown(shown bool) {
	if shown == o.shown {
		return
	}
	o.shown = shown
	if shown {
		o.win.OrderFrontRegardless()
	} else {
		o.win.OrderOut(nil)
	}
}

// OverlayContent decides what the panel shows for a status snapshot.
// Precedence: errors over the busy indicator over the last answer, so a
// failed analysis never leaves a stale answer on screen as if it were fresh.
func OverlayContent(status *ipc.StatusSnapshot) (text string, visible bool) {
	if status == nil {
		return "Veil: waiting for daemon", false
	}
	switch {
	case status.LastError != "":
		text = "Error: " + status.LastError
	case status.AssistBusy:
		text = "Analyzing..."
	case status.AnalysisText != "":
		text = status.AnalysisText
	default:
		text = "Veil ready.\nPress the activation shortcut or pick Analyze Screen from the menu."
	}
	if len(text) > overlayTextLimit {
		cut := strings.LastIndexByte(text[:overlayTextLimit], '\n')
		if cut < overlayTextLimit/2 {
			cut = overlayTextLimit
		}
		text = text[:cut] + "\n[truncated - full answer in ~/Documents/veil]"
	}
	return text, status.WindowVisible
}
