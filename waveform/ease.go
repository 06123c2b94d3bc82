package waveform

// Ease maps linear fade progress in [0, 1] onto a duty curve.
type Ease string

const (
	Linear Ease = "linear"
	// Smooth is the classic smoothstep 3x^2 - 2x^3.
	Smooth Ease = "smooth"
	// Cubic is smootherstep 6x^5 - 15x^4 + 10x^3, flatter at both ends.
	Cubic Ease = "cubic"
)

func (e Ease) valid() bool {
	switch e {
	case "", Linear, Smooth, Cubic:
		return true
	}
	return false
}

func (e Ease) apply(x float64) float64 {
	switch e {
	case Smooth:
		return x * x * (3 - 2*x)
	case Cubic:
		return x * x * x * (x*(x*6-15) + 10)
	}
	return x
}
