package visibility

import (
	"fmt"
	"strings"
	"time"
)

// Variant is the pair of utility classes a region switches between.
type Variant struct {
	Hidden  string
	Visible string
}

func (v Variant) Class(visible bool) string {
	if visible {
		return v.Visible
	}
	return v.Hidden
}

const DefaultAnimation = "fadeInUp"

var variants = map[string]Variant{
	"fadeInUp":    {Hidden: "opacity-0 translate-y-8", Visible: "opacity-100 translate-y-0"},
	"fadeInLeft":  {Hidden: "opacity-0 -translate-x-8", Visible: "opacity-100 translate-x-0"},
	"fadeInRight": {Hidden: "opacity-0 translate-x-8", Visible: "opacity-100 translate-x-0"},
	"fadeIn":      {Hidden: "opacity-0", Visible: "opacity-100"},
	"scaleIn":     {Hidden: "opacity-0 scale-95", Visible: "opacity-100 scale-100"},
}

// LookupVariant falls back to fadeInUp for unknown names.
func LookupVariant(name string) (Variant, bool) {
	v, ok := variants[name]
	if !ok {
		return variants[DefaultAnimation], false
	}
	return v, true
}

const DefaultDuration = 600 * time.Millisecond

// Transition is the timing applied when a region flips state.
type Transition struct {
	Delay    time.Duration
	Duration time.Duration
}

// Style renders the inline CSS for the transition; a zero delay is omitted.
func (t Transition) Style() string {
	duration := t.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	style := fmt.Sprintf("transition-duration: %dms;", duration.Milliseconds())
	if t.Delay > 0 {
		style = fmt.Sprintf("transition-delay: %dms; %s", t.Delay.Milliseconds(), style)
	}
	return style
}

// Classes joins the base transition classes, the variant state and any extra
// classes, skipping empty parts.
func Classes(animation string, visible bool, extra string) string {
	v, _ := LookupVariant(animation)
	parts := []string{"transform transition-all ease-out", v.Class(visible), strings.TrimSpace(extra)}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
