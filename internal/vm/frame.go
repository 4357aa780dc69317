package vm

// Frame addressing. At any moment the machine exposes four slices
// (globals, locals, args, closed) as described in spec section 3; all
// but globals are views into the operand stack or a closure object
// rather than separately allocated arrays.
//
// argsBase/localsBase are *absolute* indices into the operand stack's
// backing array - stable across later pushes/pops within the frame,
// unlike a depth-from-sp offset. They are derived from bp exactly the
// way the reference calling convention derives args.p/locals.p from
// bp in spec section 4.4:
//
//	argsBase   = bp + argsLen - 1   (arg i lives at argsBase - i)
//	localsBase = bp - localsLen     (local i lives at localsBase + i)

// slot resolves (mem, idx) to a stable pointer into the addressed
// region, or a fatal error if idx is out of range for that region.
func (m *Machine) slot(mem MemKind, idx int32) (*Word, error) {
	if idx < 0 {
		return nil, ErrSliceOutOfRange
	}
	i := int(idx)

	switch mem {
	case MemGlobal:
		if i >= len(m.globals) {
			return nil, ErrSliceOutOfRange
		}
		return &m.globals[i], nil
	case MemLocal:
		if i >= m.localsLen {
			return nil, ErrSliceOutOfRange
		}
		return m.stack.At(m.localsBase + i)
	case MemArg:
		if i >= m.argsLen {
			return nil, ErrSliceOutOfRange
		}
		return m.stack.At(m.argsBase - i)
	case MemClosed:
		if !m.isClosure {
			return nil, ErrNotAClosureFrame
		}
		if i >= len(m.closed) {
			return nil, ErrSliceOutOfRange
		}
		return &m.closed[i], nil
	default:
		return nil, ErrUnknownOpcode
	}
}

// savedFrame is the bookkeeping BEGIN pushes onto the control stack
// and END unwinds, in push order (bp pushed last, so it is popped
// first).
type savedFrame struct {
	argsLen, localsLen int
	bp                 int
}

// pushFrame records the currently-active frame (the caller's) onto
// the control stack, in the order END expects to unwind it.
func (m *Machine) pushFrame() error {
	if err := m.control.Push(uint64(m.argsLen)); err != nil {
		return err
	}
	if err := m.control.Push(uint64(m.localsLen)); err != nil {
		return err
	}
	return m.control.Push(uint64(m.bp))
}

func (m *Machine) popFrame() (savedFrame, error) {
	bpv, err := m.control.Pop()
	if err != nil {
		return savedFrame{}, err
	}
	localsv, err := m.control.Pop()
	if err != nil {
		return savedFrame{}, err
	}
	argsv, err := m.control.Pop()
	if err != nil {
		return savedFrame{}, err
	}
	return savedFrame{argsLen: int(argsv), localsLen: int(localsv), bp: int(bpv)}, nil
}

// call pushes the return address and the *caller's* closure-ness onto
// the control stack (the two words CALL/CALLC contribute; BEGIN/CBEGIN
// contribute the other three once the callee starts executing), sets
// is_closure for the callee about to start, and transfers control to
// target.
func (m *Machine) call(target int32, calleeIsClosure bool) error {
	var flag uint64
	if m.isClosure {
		flag = 1
	}
	if err := m.control.Push(uint64(m.ip)); err != nil {
		return err
	}
	if err := m.control.Push(flag); err != nil {
		return err
	}
	if err := m.jump(target); err != nil {
		return err
	}
	m.isClosure = calleeIsClosure
	return nil
}

// begin implements the BEGIN bookkeeping shared by BEGIN and CBEGIN:
// snapshot the caller's frame onto the control stack, install the new
// argument view, push zeroed locals, and install the new local view.
// is_closure is already set by the preceding CALL/CALLC; CBEGIN alone
// repopulates closed afterward.
func (m *Machine) begin(argc, locn int32) error {
	if err := m.pushFrame(); err != nil {
		return err
	}

	m.bp = m.stack.SP()
	m.argsLen = int(argc)
	m.argsBase = m.bp + m.argsLen - 1

	for i := int32(0); i < locn; i++ {
		if err := m.stack.Push(Box(0)); err != nil {
			return err
		}
	}
	m.localsLen = int(locn)
	m.localsBase = m.stack.SP()

	m.closed = nil
	return nil
}

// closureBeneathArgs returns the index of the hidden closure slot one
// position beneath argument 0, for both CBEGIN (current frame) and
// the post-END closure-restore path (restored frame).
func closureBeneathArgs(argsBase int) int {
	return argsBase + 1
}

// closureTarget peeks the closure pushed argc deep on the operand
// stack (CALLC's hidden slot, still beneath the real arguments) and
// resolves its entry offset without disturbing the stack; CBEGIN finds
// the same cell again afterward at argsBase+1 once bp is set.
func (m *Machine) closureTarget(argc int32) (int32, error) {
	w, err := m.stack.Peek(int(argc))
	if err != nil {
		return 0, err
	}
	entry, _, ok := m.prim.ClosureEntry(w)
	if !ok {
		return 0, ErrTagMismatch
	}
	return entry, nil
}

func (m *Machine) loadClosed() error {
	idx := closureBeneathArgs(m.argsBase)
	cell, err := m.stack.At(idx)
	if err != nil {
		return err
	}
	entry, captured, ok := m.prim.ClosureEntry(*cell)
	if !ok {
		return ErrTagMismatch
	}
	_ = entry
	m.closure = *cell
	m.closed = captured
	return nil
}

// end implements END/RET: pop the return value, unwind the current
// frame's locals/args/hidden-closure-slot, and either terminate (if
// that empties the stack - the return from main) or restore the
// caller's frame and push the return value back.
func (m *Machine) end() (halted bool, err error) {
	ret, err := m.stack.Pop()
	if err != nil {
		return false, err
	}

	drop := m.localsLen + m.argsLen
	if m.isClosure {
		drop++
	}
	if err := m.stack.Drop(drop); err != nil {
		return false, err
	}

	if m.stack.Empty() {
		return true, nil
	}

	if err := m.stack.Push(ret); err != nil {
		return false, err
	}

	saved, err := m.popFrame()
	if err != nil {
		return false, err
	}
	wasClosure, err := m.control.Pop()
	if err != nil {
		return false, err
	}
	retAddr, err := m.control.Pop()
	if err != nil {
		return false, err
	}

	m.bp = saved.bp
	m.argsLen = saved.argsLen
	m.localsLen = saved.localsLen
	m.argsBase = m.bp + m.argsLen - 1
	m.localsBase = m.bp - m.localsLen
	m.isClosure = wasClosure != 0
	m.ip = int(retAddr)

	if m.isClosure {
		if err := m.loadClosed(); err != nil {
			return false, err
		}
	} else {
		m.closed = nil
		m.closure = 0
	}

	return false, nil
}
