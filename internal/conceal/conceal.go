// Package conceal owns the overlay's visual state. The controller moves the
// window between normal and concealed presentation and is the only writer of
// that state; everything else observes it through snapshots.
package conceal

// State is the controller's externally visible mode.
type State string

const (
	StateNormal    State = "normal"
	StateConcealed State = "concealed"
)

// Technique records which concealment tier actually took effect, so that
// disengaging reverses exactly what was applied.
type Technique string

const (
	TechniqueNone      Technique = ""
	TechniqueExclusion Technique = "capture-exclusion"
	TechniqueOpacity   Technique = "opacity-fallback"
)

// VisualState is the window presentation the controller has applied.
type VisualState struct {
	Opacity         float64 `json:"opacity"`
	CaptureExcluded bool    `json:"capture_excluded"`
}

// WindowBackend applies presentation changes to a native window. Backends
// report capability limits through errors; the controller downgrades
// through its tiers rather than failing.
type WindowBackend interface {
	Name() string

	// SetCaptureExcluded toggles the window's capture-exclusion attribute.
	// Returns an error where the platform or window cannot honor it.
	SetCaptureExcluded(excluded bool) error

	// SetOpacity sets the window's alpha in [0, 1].
	SetOpacity(opacity float64) error
}

// MemoryBackend tracks presentation in memory. Used by the daemon, which
// owns no real window, and by restricted environments. SupportsExclusion
// false simulates a platform without the capture-exclusion attribute.
type MemoryBackend struct {
	SupportsExclusion bool

	Excluded bool
	Opacity  float64
}

// NewMemoryBackend returns a memory backend with exclusion support enabled.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{SupportsExclusion: true, Opacity: 1.0}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) SetCaptureExcluded(excluded bool) error {
	if !b.SupportsExclusion {
		return ErrExclusionUnavailable
	}
	b.Excluded = excluded
	return nil
}

func (b *MemoryBackend) SetOpacity(opacity float64) error {
	b.Opacity = opacity
	return nil
}
