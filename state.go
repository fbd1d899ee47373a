package gtkserver

import "sync"

// Cell is the backing store of a PTR_* argument. The callee writes through
// the pointer; after the call the cell is read back and rendered.
type Cell struct {
	Kind  Kind
	Int   int64
	Float float64
	Ptr   uintptr
	Text  string
	Bytes []byte
	Size  int
}

// pendingCallback binds a macro to the user-data string address passed
// with it, so the trampoline can find which macro to run.
type pendingCallback struct {
	Macro string
	Data  string
}

// CallState holds per-call scratch storage and the callback bindings that
// outlive a single call.
type CallState struct {
	mu sync.RWMutex

	// frames holds one set of cells per nested call depth, so a native call
	// that re-enters the dispatcher through a callback keeps its own cells.
	frames []*[MaxArgs]Cell
	depth  int

	pending map[uintptr]pendingCallback
}

// NewCallState creates empty call state
func NewCallState() *CallState {
	return &CallState{
		pending: make(map[uintptr]pendingCallback),
	}
}

// enter reserves a fresh frame of cells and returns it
func (c *CallState) enter() *[MaxArgs]Cell {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth == len(c.frames) {
		c.frames = append(c.frames, new([MaxArgs]Cell))
	}
	frame := c.frames[c.depth]
	*frame = [MaxArgs]Cell{}
	c.depth++
	return frame
}

// leave releases the innermost frame
func (c *CallState) leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth > 0 {
		c.depth--
	}
}

// Depth returns the current call nesting
func (c *CallState) Depth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.depth
}

// bind records that addr identifies a pending macro callback
func (c *CallState) bind(addr uintptr, macro, data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[addr] = pendingCallback{Macro: macro, Data: data}
}

// lookup returns the callback bound to addr
func (c *CallState) lookup(addr uintptr) (pendingCallback, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pending[addr]
	return p, ok
}
