package visibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMargin(t *testing.T) {
	px := func(v float64) Length { return Length{Value: v} }
	pct := func(v float64) Length { return Length{Value: v, Percent: true} }

	tests := []struct {
		in   string
		want Margin
	}{
		{"", Margin{}},
		{"10px", Margin{px(10), px(10), px(10), px(10)}},
		{"10px 5%", Margin{px(10), pct(5), px(10), pct(5)}},
		{"1px 2px 3px", Margin{px(1), px(2), px(3), px(2)}},
		{DefaultRootMargin, Margin{px(0), px(0), px(-100), px(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMargin(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMarginErrors(t *testing.T) {
	for _, in := range []string{"10em", "1px 2px 3px 4px 5px", "abcpx", "10"} {
		_, err := ParseMargin(in)
		assert.Error(t, err, in)
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.Error(t, Options{Threshold: -0.1}.Validate())
	assert.Error(t, Options{Threshold: 0.5, RootMargin: "5vh"}.Validate())
}

func TestViewportRatioWithMargin(t *testing.T) {
	vp := NewViewport(1000, 1000)
	vp.Place("box", Rect{Y: 900, Width: 1000, Height: 200})

	plain, _ := ParseMargin("0px")
	assert.InDelta(t, 0.5, vp.Ratio("box", plain), 1e-9)

	shrunk, _ := ParseMargin(DefaultRootMargin)
	assert.Equal(t, 0.0, vp.Ratio("box", shrunk))

	grown, _ := ParseMargin("0px 0px 10% 0px")
	assert.InDelta(t, 1.0, vp.Ratio("box", grown), 1e-9)

	assert.Equal(t, 0.0, vp.Ratio("missing", plain))
}

func TestClasses(t *testing.T) {
	assert.Equal(t, "transform transition-all ease-out opacity-0 translate-y-8", Classes("fadeInUp", false, ""))
	assert.Equal(t, "transform transition-all ease-out opacity-100 scale-100 mb-4", Classes("scaleIn", true, " mb-4 "))

	v, ok := LookupVariant("spin")
	assert.False(t, ok)
	assert.Equal(t, "opacity-0 translate-y-8", v.Hidden)
}

func TestTransitionStyle(t *testing.T) {
	assert.Equal(t, "transition-duration: 600ms;", Transition{}.Style())
	assert.Equal(t, "transition-delay: 100ms; transition-duration: 800ms;",
		Transition{Delay: 100 * time.Millisecond, Duration: 800 * time.Millisecond}.Style())
}
