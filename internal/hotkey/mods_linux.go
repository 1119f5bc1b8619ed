//go:build linux

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

func systemModifier(m Modifier) (hotkey.Modifier, error) {
	switch m {
	case ModCtrl:
		return hotkey.ModCtrl, nil
	case ModAlt:
		return hotkey.Mod1, nil
	case ModShift:
		return hotkey.ModShift, nil
	case ModSuper:
		return hotkey.Mod4, nil
	}
	return 0, fmt.Errorf("unknown modifier %q", m)
}
