package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/veilhq/veil/internal/config"
)

// windowListCheck is the cheapest and most decisive probe: a window owned by
// a known conferencing app whose title carries a sharing indicator ("is
// being shared", "presenting", ...) means a share is active right now.
type windowListCheck struct {
	probe PlatformProbe
	rules []config.DetectionRule
}

func (c *windowListCheck) Name() string { return SourceWindowList }

func (c *windowListCheck) Probe(ctx context.Context) Signal {
	sig := Signal{Source: SourceWindowList}

	windows, err := c.probe.OnScreenWindows(ctx)
	if err != nil {
		sig.Error = err.Error()
		return sig
	}

	for _, w := range windows {
		rule := matchRule(c.rules, w)
		if rule == nil {
			continue
		}
		title := strings.ToLower(w.Title)
		for _, hint := range rule.SharingHints {
			if strings.Contains(title, strings.ToLower(hint)) {
				sig.Positive = true
				sig.Detail = fmt.Sprintf("%s: %q", rule.Application, w.Title)
				return sig
			}
		}
	}
	return sig
}

// matchRule returns the enabled rule whose app identity matches the window
// owner, or whose window hints match the title. Nil when no rule applies.
func matchRule(rules []config.DetectionRule, w WindowInfo) *config.DetectionRule {
	app := strings.ToLower(w.App)
	title := strings.ToLower(w.Title)
	for i := range rules {
		r := &rules[i]
		for _, name := range r.ProcessNames {
			if app != "" && strings.Contains(app, strings.ToLower(name)) {
				return r
			}
		}
		for _, hint := range r.WindowHints {
			if title != "" && strings.Contains(title, strings.ToLower(hint)) {
				return r
			}
		}
	}
	return nil
}
