package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

// systemKeys maps normalized key tokens to the hotkey library's codes. The
// identifiers exist on every supported platform even though the values
// differ per key system.
var systemKeys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3,
	"f4": hotkey.KeyF4, "f5": hotkey.KeyF5, "f6": hotkey.KeyF6,
	"f7": hotkey.KeyF7, "f8": hotkey.KeyF8, "f9": hotkey.KeyF9,
	"f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
	"space": hotkey.KeySpace, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab, "esc": hotkey.KeyEscape,
}

// Binding is a registered system-wide hotkey.
type Binding struct {
	hk *hotkey.Hotkey
}

// Bind registers the combo with the window system. The returned binding
// must be closed to release the registration.
func Bind(c Combo) (*Binding, error) {
	mods := make([]hotkey.Modifier, 0, len(c.Mods))
	for _, m := range c.Mods {
		sys, err := systemModifier(m)
		if err != nil {
			return nil, err
		}
		mods = append(mods, sys)
	}

	key, ok := systemKeys[c.Key]
	if !ok {
		return nil, fmt.Errorf("key %q cannot be bound on this platform", c.Key)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", c, err)
	}
	return &Binding{hk: hk}, nil
}

// Keydown delivers one event per activation.
func (b *Binding) Keydown() <-chan hotkey.Event {
	return b.hk.Keydown()
}

// Close releases the system registration.
func (b *Binding) Close() error {
	return b.hk.Unregister()
}
