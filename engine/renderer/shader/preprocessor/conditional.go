package preprocessor

// frame is one level of #if nesting.
type frame struct {
	// accepted reports whether lines in the current branch are emitted.
	accepted bool

	// taken reports whether any branch of this block has been accepted.
	taken bool

	// parentAccepted caches the enclosing frame's acceptance so that #elif and #else
	// never accept inside a rejected parent.
	parentAccepted bool

	// passthrough marks a block whose condition is left to the external compiler.
	passthrough bool

	// sawElse is set once #else has been seen.
	sawElse bool

	// line is the 1-based line of the opening #if, for error reporting.
	line int
}

// condStack is the conditional frame stack. The root frame is always present.
type condStack struct {
	frames []frame
}

func newCondStack() *condStack {
	return &condStack{frames: []frame{{accepted: true, parentAccepted: true}}}
}

func (s *condStack) top() *frame {
	return &s.frames[len(s.frames)-1]
}

// accepting reports whether the current line should be emitted.
func (s *condStack) accepting() bool {
	return s.top().accepted
}

// depth returns the number of open blocks, excluding the root frame.
func (s *condStack) depth() int {
	return len(s.frames) - 1
}

// push opens a block. Pass-through blocks inherit the parent's acceptance.
func (s *condStack) push(cond, passthrough bool, line int) {
	parent := s.accepting()
	accepted := parent && (cond || passthrough)
	s.frames = append(s.frames, frame{
		accepted:       accepted,
		taken:          accepted,
		parentAccepted: parent,
		passthrough:    passthrough,
		line:           line,
	})
}

// elif switches to an #elif branch. cond is only evaluated when no earlier branch of
// the block was taken.
func (s *condStack) elif(cond func() bool) error {
	if s.depth() == 0 {
		return errUnbalanced("#elif without matching #if")
	}
	f := s.top()
	if f.sawElse {
		return errUnbalanced("#elif after #else")
	}
	if f.passthrough {
		return nil
	}
	if f.taken {
		f.accepted = false
		return nil
	}
	f.accepted = f.parentAccepted && cond()
	f.taken = f.accepted
	return nil
}

// els switches to the #else branch.
func (s *condStack) els() error {
	if s.depth() == 0 {
		return errUnbalanced("#else without matching #if")
	}
	f := s.top()
	if f.sawElse {
		return errUnbalanced("duplicate #else")
	}
	f.sawElse = true
	if f.passthrough {
		return nil
	}
	f.accepted = f.parentAccepted && !f.taken
	f.taken = true
	return nil
}

// pop closes the innermost block.
func (s *condStack) pop() error {
	if s.depth() == 0 {
		return errUnbalanced("#endif without matching #if")
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// errUnbalanced describes a nesting error. The preprocessor wraps it in a
// MalformedConditional error carrying the file and line.
type errUnbalanced string

func (e errUnbalanced) Error() string { return string(e) }
