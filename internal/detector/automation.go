package detector

import (
	"context"
	"fmt"

	"github.com/veilhq/veil/internal/config"
)

// automationCheck asks each conferencing app, via the platform's scripting
// bridge, whether its stop-share control is currently exposed. Slower than
// the window list but authoritative for apps that rename no window while
// sharing. Rules without a stop_share_menu entry are skipped.
type automationCheck struct {
	probe PlatformProbe
	rules []config.DetectionRule
}

func (c *automationCheck) Name() string { return SourceAutomation }

func (c *automationCheck) Probe(ctx context.Context) Signal {
	sig := Signal{Source: SourceAutomation}

	var lastErr error
	for _, rule := range c.rules {
		if rule.StopShareMenu == "" {
			continue
		}
		if ctx.Err() != nil {
			sig.Error = ctx.Err().Error()
			return sig
		}
		present, err := c.probe.MenuItemPresent(ctx, rule.Application, rule.StopShareMenu)
		if err != nil {
			// Scripting may be denied for one app and allowed for another.
			lastErr = err
			continue
		}
		if present {
			sig.Positive = true
			sig.Detail = fmt.Sprintf("%s exposes %q", rule.Application, rule.StopShareMenu)
			return sig
		}
	}
	if lastErr != nil {
		sig.Error = lastErr.Error()
	}
	return sig
}
