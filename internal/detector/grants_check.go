package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/veilhq/veil/internal/config"
)

// grantCheck consults the platform's capture-permission records: an entry
// for a known conferencing app means it has taken the screen at least once
// and is authorized to do so again without any visible prompt. Weakest
// evidence in the chain, so it runs last.
type grantCheck struct {
	source GrantSource
	rules  []config.DetectionRule
}

func (c *grantCheck) Name() string { return SourceCaptureGrant }

func (c *grantCheck) Probe(ctx context.Context) Signal {
	sig := Signal{Source: SourceCaptureGrant}

	clients, err := c.source.ScreenCaptureClients(ctx)
	if err != nil {
		sig.Error = err.Error()
		return sig
	}

	for _, client := range clients {
		if rule := ruleForProcess(c.rules, client); rule != nil {
			sig.Positive = true
			sig.Detail = fmt.Sprintf("%s holds capture grant (%s)", rule.Application, strings.ToLower(client))
			return sig
		}
	}
	return sig
}
