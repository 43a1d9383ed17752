package preprocessor

type frameState int

const (
	// frameAccepted: condition true here and at every enclosing level.
	frameAccepted frameState = iota + 1
	// frameRefused: the outermost false condition.
	frameRefused
	// frameIgnored: nested inside a refused frame, condition never evaluated.
	frameIgnored
)

func (s frameState) String() string {
	switch s {
	case frameAccepted:
		return "accepted"
	case frameRefused:
		return "refused"
	case frameIgnored:
		return "ignored"
	}
	return "unknown"
}

type condFrame struct {
	state frameState
	line  int
}

// condStack holds one frame per open #if/#ifn. It contains at most one
// refused frame and every frame above it is ignored.
type condStack struct {
	stack []condFrame
}

func (c *condStack) Depth() int { return len(c.stack) }

// Active reports whether lines are currently copied.
func (c *condStack) Active() bool {
	if len(c.stack) == 0 {
		return true
	}
	return c.stack[len(c.stack)-1].state == frameAccepted
}

// Push opens a frame. cond is only called when the stack is active.
func (c *condStack) Push(line int, cond func() bool) frameState {
	state := frameIgnored
	if c.Active() {
		if cond() {
			state = frameAccepted
		} else {
			state = frameRefused
		}
	}
	c.stack = append(c.stack, condFrame{state: state, line: line})
	return state
}

// Pop closes the innermost frame. It reports false on an empty stack.
func (c *condStack) Pop() (condFrame, bool) {
	if len(c.stack) == 0 {
		return condFrame{}, false
	}
	top := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return top, true
}

func (c *condStack) UnclosedLine() int {
	if len(c.stack) == 0 {
		return 0
	}
	return c.stack[len(c.stack)-1].line
}
