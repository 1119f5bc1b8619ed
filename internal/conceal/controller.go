package conceal

import (
	"errors"
	"sync"

	"github.com/veilhq/veil/internal/diaglog"
)

// ErrExclusionUnavailable marks a backend that cannot set the
// capture-exclusion attribute. The controller falls back to opacity.
var ErrExclusionUnavailable = errors.New("capture exclusion unavailable")

// Controller is the single writer of the window's visual state. Engage
// walks the concealment tiers until one sticks; Disengage reverses exactly
// the technique that was applied. Both are idempotent.
type Controller struct {
	backend WindowBackend
	log     *diaglog.Logger

	normalOpacity    float64
	concealedOpacity float64

	mu        sync.Mutex
	state     State
	technique Technique
	visual    VisualState
	engages   int
	releases  int
}

// NewController starts in the normal state with the window fully presented.
func NewController(backend WindowBackend, normalOpacity, concealedOpacity float64, log *diaglog.Logger) *Controller {
	if log == nil {
		log = diaglog.NewNoOp()
	}
	c := &Controller{
		backend:          backend,
		log:              log,
		normalOpacity:    normalOpacity,
		concealedOpacity: concealedOpacity,
		state:            StateNormal,
		visual:           VisualState{Opacity: normalOpacity},
	}
	// Best effort: make the backend agree with our initial state.
	_ = backend.SetOpacity(normalOpacity)
	return c
}

// Apply drives the controller from a sharing verdict. Re-applying the
// current state is a no-op; backends are only touched on transitions.
func (c *Controller) Apply(sharing bool) {
	if sharing {
		c.Engage()
	} else {
		c.Disengage()
	}
}

// Engage conceals the window. Tier one is the platform's capture-exclusion
// attribute, which hides the window from capture while keeping it fully
// visible to the user. Where that is unavailable the window is dimmed
// instead. The final tier cannot fail, so Engage always lands in the
// concealed state.
func (c *Controller) Engage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConcealed {
		return
	}

	if err := c.backend.SetCaptureExcluded(true); err == nil {
		c.technique = TechniqueExclusion
		c.visual = VisualState{Opacity: c.normalOpacity, CaptureExcluded: true}
	} else {
		if oerr := c.backend.SetOpacity(c.concealedOpacity); oerr != nil {
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentConceal,
				Event:     diaglog.EventCheckError,
				Reason:    "opacity fallback failed",
				Payload:   map[string]interface{}{"error": oerr.Error()},
			})
		}
		c.technique = TechniqueOpacity
		c.visual = VisualState{Opacity: c.concealedOpacity, CaptureExcluded: false}
	}

	c.state = StateConcealed
	c.engages++
	c.log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentConceal,
		Event:     diaglog.EventConcealEngage,
		Reason:    string(c.technique),
	})
}

// Disengage restores normal presentation, reversing only the technique that
// Engage applied.
func (c *Controller) Disengage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateNormal {
		return
	}

	switch c.technique {
	case TechniqueExclusion:
		if err := c.backend.SetCaptureExcluded(false); err != nil {
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentConceal,
				Event:     diaglog.EventCheckError,
				Reason:    "exclusion release failed",
				Payload:   map[string]interface{}{"error": err.Error()},
			})
		}
	case TechniqueOpacity:
		_ = c.backend.SetOpacity(c.normalOpacity)
	}

	c.state = StateNormal
	c.technique = TechniqueNone
	c.visual = VisualState{Opacity: c.normalOpacity}
	c.releases++
	c.log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentConceal,
		Event:     diaglog.EventConcealDisengage,
	})
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Technique returns the tier currently in effect, TechniqueNone when normal.
func (c *Controller) Technique() Technique {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.technique
}

// Visual returns the applied visual state.
func (c *Controller) Visual() VisualState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visual
}

// Transitions reports how many engage and disengage transitions have run.
// Re-applied states do not count.
func (c *Controller) Transitions() (engages, releases int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engages, c.releases
}
