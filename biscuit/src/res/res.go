// Package res tracks a per-process charge against a shared system-wide
// resource limit, the way limits.Sysatomic_t is metered in the teacher
// kernel, without hand-rolling the increment/decrement bookkeeping at
// every call site. No other package in this tree imports it; vm charges
// nothing against limits.Syslimit.
package res

import "limits"

/// Res_t tracks how many units of a Sysatomic_t-backed limit the owner
/// currently holds, so they can all be released at once on process exit.
type Res_t struct {
	lim  *limits.Sysatomic_t
	held int
}

/// Init binds the tracker to a shared limit.
func Init(lim *limits.Sysatomic_t) *Res_t {
	return &Res_t{lim: lim}
}

/// Charge takes one unit from the shared limit and remembers it was taken.
/// It returns false (without side effect) if the limit is exhausted.
func (r *Res_t) Charge() bool {
	if !r.lim.Take() {
		return false
	}
	r.held++
	return true
}

/// Uncharge releases n previously charged units back to the shared limit.
func (r *Res_t) Uncharge(n int) {
	if n > r.held {
		panic("res: uncharge more than held")
	}
	for i := 0; i < n; i++ {
		r.lim.Give()
	}
	r.held -= n
}

/// ReleaseAll gives back every unit still held, for use at process exit.
func (r *Res_t) ReleaseAll() {
	r.Uncharge(r.held)
}

/// Held reports how many units are currently charged.
func (r *Res_t) Held() int {
	return r.held
}
