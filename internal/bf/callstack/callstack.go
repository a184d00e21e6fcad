// Package callstack tracks which instrumented function is executing on
// each goroutine.
//
// Every goroutine owns one Stack of Frame values. Push and Pop only touch
// the calling goroutine's stack, so they need no locking; the Tracker's
// sync.Map is read lock-free once a goroutine's stack exists.
//
// A call site noted with NoteCallSite is attached to the next frame the
// same goroutine pushes. This lets per-chain tallies distinguish two calls
// to the same function from different places in the caller.
package callstack

import (
	"sync"
)

// Frame is one active function on a goroutine's stack.
type Frame struct {
	// Name is the function identity.
	Name string

	// CallSite identifies the call instruction that entered this frame,
	// or "" when the caller did not note one.
	CallSite string
}

// Stack is a single goroutine's frames, outermost first.
//
// Thread Safety: NOT safe for concurrent use. A Stack belongs to exactly
// one goroutine.
type Stack struct {
	frames  []Frame
	pending string
}

// Push enters name, consuming any pending call site.
func (s *Stack) Push(name string) {
	s.frames = append(s.frames, Frame{Name: name, CallSite: s.pending})
	s.pending = ""
}

// Pop leaves the innermost frame. Popping an empty stack is a no-op.
func (s *Stack) Pop() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, true
}

// NoteCallSite remembers site for the next Push.
func (s *Stack) NoteCallSite(site string) {
	s.pending = site
}

// Top returns the innermost frame.
func (s *Stack) Top() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// Depth returns the number of active frames.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Frames returns the live frame slice, outermost first. The slice is only
// valid until the next Push or Pop.
func (s *Stack) Frames() []Frame {
	return s.frames
}

// Tracker maps goroutines to their stacks.
//
// Thread Safety: All methods are safe for concurrent calls. Each method
// operates on the calling goroutine's stack.
type Tracker struct {
	stacks sync.Map // int64 goroutine ID → *Stack
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns the calling goroutine's stack, creating it on first use.
func (t *Tracker) Current() *Stack {
	gid := goroutineID()
	if v, ok := t.stacks.Load(gid); ok {
		return v.(*Stack)
	}
	v, _ := t.stacks.LoadOrStore(gid, &Stack{})
	return v.(*Stack)
}

// Push enters name on the calling goroutine.
func (t *Tracker) Push(name string) {
	t.Current().Push(name)
}

// Pop leaves the innermost frame of the calling goroutine.
func (t *Tracker) Pop() (Frame, bool) {
	return t.Current().Pop()
}

// NoteCallSite attaches site to the next Push on the calling goroutine.
func (t *Tracker) NoteCallSite(site string) {
	t.Current().NoteCallSite(site)
}

// Release forgets the calling goroutine's stack. Executors call this when
// a host thread finishes so goroutine IDs can be reused safely.
func (t *Tracker) Release() {
	t.stacks.Delete(goroutineID())
}

// Goroutines returns the number of goroutines with a live stack.
func (t *Tracker) Goroutines() int {
	n := 0
	t.stacks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
