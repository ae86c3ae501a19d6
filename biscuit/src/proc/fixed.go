package proc

// Fixed_t is a 17.14 fixed-point number, exactly as spec.md §4.1
// prescribes for recent_cpu/load_avg arithmetic: "All fractional
// arithmetic uses a 17.14 fixed-point representation," matching Pintos's
// own convention (pintos-design.pdf's recommended fixed-point format).
type Fixed_t int64

const fixedF = 1 << 14 // 2**14, the fractional scale

func FixedFromInt(n int) Fixed_t { return Fixed_t(n * fixedF) }

// ToIntRound converts to the nearest integer, rounding halves away from
// zero the way Pintos's own FP helpers do.
func (f Fixed_t) ToIntRound() int {
	if f >= 0 {
		return int((f + fixedF/2) / fixedF)
	}
	return int((f - fixedF/2) / fixedF)
}

func (f Fixed_t) ToIntTrunc() int { return int(f / fixedF) }

func (a Fixed_t) Add(b Fixed_t) Fixed_t { return a + b }
func (a Fixed_t) Sub(b Fixed_t) Fixed_t { return a - b }

func (a Fixed_t) AddInt(n int) Fixed_t { return a + FixedFromInt(n) }
func (a Fixed_t) SubInt(n int) Fixed_t { return a - FixedFromInt(n) }

func (a Fixed_t) Mul(b Fixed_t) Fixed_t {
	return Fixed_t((int64(a) * int64(b)) / fixedF)
}

func (a Fixed_t) MulInt(n int) Fixed_t { return a * Fixed_t(n) }

func (a Fixed_t) Div(b Fixed_t) Fixed_t {
	return Fixed_t((int64(a) * fixedF) / int64(b))
}

func (a Fixed_t) DivInt(n int) Fixed_t { return a / Fixed_t(n) }
