// Package gcroots publishes the two process-wide markers a precise,
// moving collector would scan between: stack_bottom (fixed once at
// startup) and stack_top (updated on every operand-stack push/pop).
// Go's own collector is neither precise over raw words nor moving, so
// this is an adapted analogue of that contract rather than a real GC
// hookup - see DESIGN.md. What it does for real is disable the
// collector entirely for the duration of the hot execution loop,
// since every allocation during that loop goes through the runtime
// library's arena rather than through stack growth.
package gcroots

import "runtime/debug"

// Roots holds the two markers. Both are stack-array indices rather
// than addresses, since internal/vm's operand stack never exposes raw
// pointers to its backing array outside of internal/runtime's ref
// cells.
type Roots struct {
	bottom int
	top    int
}

func (r *Roots) SetBottom(index int) { r.bottom = index }

func (r *Roots) PublishTop(index int) { r.top = index }

// Bottom and Top let a diagnostic (or, eventually, a real collector)
// read the published range; the interpreter itself only ever writes
// through SetBottom/PublishTop.
func (r *Roots) Bottom() int { return r.bottom }
func (r *Roots) Top() int    { return r.top }

// Pin disables the garbage collector for the duration of a hot
// execution run and returns a restore function. Safe to call even
// though allocations go through internal/runtime's arena
// rather than the operand stack: ordinary Go allocation (closures,
// slices inside the runtime library) still happens during execution,
// and the interpreter's root-publishing contract above only covers
// the *interpreted* program's values, not Go's own GC roots.
func Pin() (restore func()) {
	prev := debug.SetGCPercent(-1)
	return func() { debug.SetGCPercent(prev) }
}
