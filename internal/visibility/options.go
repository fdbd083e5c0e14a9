package visibility

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultThreshold  = 0.1
	DefaultRootMargin = "0px 0px -100px 0px"
)

// Options configures a Tracker.
type Options struct {
	// Threshold is the fraction of the region (0..1) that must be inside the
	// root before the region counts as visible.
	Threshold float64
	// RootMargin grows or shrinks the root box, CSS margin shorthand.
	RootMargin string
	// TriggerOnce stops observation after the first crossing into view.
	TriggerOnce bool
}

// DefaultOptions matches the reveal behaviour of the page sections.
func DefaultOptions() Options {
	return Options{
		Threshold:   DefaultThreshold,
		RootMargin:  DefaultRootMargin,
		TriggerOnce: true,
	}
}

func (o Options) Validate() error {
	if o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("threshold %v out of range [0,1]", o.Threshold)
	}
	if _, err := ParseMargin(o.RootMargin); err != nil {
		return err
	}
	return nil
}

// Length is a single margin component, either pixels or a percentage of the
// root dimension it applies to.
type Length struct {
	Value   float64
	Percent bool
}

func (l Length) String() string {
	unit := "px"
	if l.Percent {
		unit = "%"
	}
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + unit
}

// Margin is a parsed root margin in CSS order.
type Margin struct {
	Top, Right, Bottom, Left Length
}

func (m Margin) String() string {
	return strings.Join([]string{m.Top.String(), m.Right.String(), m.Bottom.String(), m.Left.String()}, " ")
}

// ParseMargin parses the CSS margin shorthand accepted by IntersectionObserver:
// one to four lengths in px or %. An empty string is a zero margin.
func ParseMargin(s string) (Margin, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Margin{}, nil
	}
	if len(fields) > 4 {
		return Margin{}, fmt.Errorf("root margin %q: too many values", s)
	}

	lengths := make([]Length, len(fields))
	for i, f := range fields {
		l, err := parseLength(f)
		if err != nil {
			return Margin{}, fmt.Errorf("root margin %q: %w", s, err)
		}
		lengths[i] = l
	}

	switch len(lengths) {
	case 1:
		return Margin{lengths[0], lengths[0], lengths[0], lengths[0]}, nil
	case 2:
		return Margin{lengths[0], lengths[1], lengths[0], lengths[1]}, nil
	case 3:
		return Margin{lengths[0], lengths[1], lengths[2], lengths[1]}, nil
	default:
		return Margin{lengths[0], lengths[1], lengths[2], lengths[3]}, nil
	}
}

func parseLength(s string) (Length, error) {
	var l Length
	num := s
	switch {
	case strings.HasSuffix(s, "px"):
		num = strings.TrimSuffix(s, "px")
	case strings.HasSuffix(s, "%"):
		num = strings.TrimSuffix(s, "%")
		l.Percent = true
	case s == "0":
	default:
		return l, fmt.Errorf("%q: length must be px or %%", s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return l, fmt.Errorf("%q: %w", s, err)
	}
	l.Value = v
	return l, nil
}

// sameObservation reports whether two option sets can share one registration.
// Margins are compared after parsing so "0px" and "0px 0px" are equal.
func sameObservation(a, b Options) bool {
	if a.Threshold != b.Threshold || a.TriggerOnce != b.TriggerOnce {
		return false
	}
	ma, errA := ParseMargin(a.RootMargin)
	mb, errB := ParseMargin(b.RootMargin)
	if errA != nil || errB != nil {
		return a.RootMargin == b.RootMargin
	}
	return ma == mb
}
