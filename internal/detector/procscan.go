package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/veilhq/veil/internal/config"
)

// processSample is one running process with its resource usage.
type processSample struct {
	PID        int32
	Name       string
	CPUPercent float64
	MemPercent float64
}

// processSampler enumerates running processes. Split out so the scan
// heuristics are testable without a live process table.
type processSampler interface {
	Samples(ctx context.Context) ([]processSample, error)
}

// gopsutilSampler reads the real process table.
type gopsutilSampler struct{}

func newGopsutilSampler() *gopsutilSampler { return &gopsutilSampler{} }

func (s *gopsutilSampler) Samples(ctx context.Context) ([]processSample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process enumeration failed: %w", err)
	}

	samples := make([]processSample, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue // exited or inaccessible, skip
		}
		cpu, _ := p.CPUPercentWithContext(ctx)
		mem, _ := p.MemoryPercentWithContext(ctx)
		samples = append(samples, processSample{
			PID:        p.Pid,
			Name:       name,
			CPUPercent: cpu,
			MemPercent: float64(mem),
		})
	}
	return samples, nil
}

// daemonCheck looks for the OS screen-sharing services themselves
// (screensharingd, vino-server, RdpSa and friends). Their mere presence
// means the desktop is being served to someone.
type daemonCheck struct {
	sampler processSampler
	daemons []string
}

func (c *daemonCheck) Name() string { return SourceDaemon }

func (c *daemonCheck) Probe(ctx context.Context) Signal {
	sig := Signal{Source: SourceDaemon}

	samples, err := c.sampler.Samples(ctx)
	if err != nil {
		sig.Error = err.Error()
		return sig
	}

	for _, s := range samples {
		name := strings.ToLower(s.Name)
		for _, d := range c.daemons {
			if name == strings.ToLower(d) {
				sig.Positive = true
				sig.Detail = s.Name
				return sig
			}
		}
	}
	return sig
}

// processScanCheck is the resource heuristic: a known conferencing client
// burning real CPU and memory is most likely encoding a shared screen.
// Both comparisons are strictly greater-than; a process sitting exactly on
// a threshold does not trigger.
type processScanCheck struct {
	sampler      processSampler
	rules        []config.DetectionRule
	cpuThreshold float64
	memThreshold float64
}

func (c *processScanCheck) Name() string { return SourceProcessScan }

func (c *processScanCheck) Probe(ctx context.Context) Signal {
	sig := Signal{Source: SourceProcessScan}

	samples, err := c.sampler.Samples(ctx)
	if err != nil {
		sig.Error = err.Error()
		return sig
	}

	for _, s := range samples {
		rule := ruleForProcess(c.rules, s.Name)
		if rule == nil {
			continue
		}
		if s.CPUPercent > c.cpuThreshold && s.MemPercent > c.memThreshold {
			sig.Positive = true
			sig.Detail = fmt.Sprintf("%s (%s) cpu=%.1f%% mem=%.1f%%", s.Name, rule.Application, s.CPUPercent, s.MemPercent)
			return sig
		}
	}
	return sig
}

func ruleForProcess(rules []config.DetectionRule, procName string) *config.DetectionRule {
	name := strings.ToLower(procName)
	for i := range rules {
		for _, pattern := range rules[i].ProcessNames {
			if strings.Contains(name, strings.ToLower(pattern)) {
				return &rules[i]
			}
		}
	}
	return nil
}
