//go:build windows

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
		return hotkey.ModAlt, nil
	case ModShift:
		return hotkey.ModShift, nil
	case ModSuper:
		return hotkey.ModWin, nil
	}
	return 0, fmt.Errorf("unknown modifier %q", m)
}
