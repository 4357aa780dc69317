package vm

import (
	"fmt"
	"io"
)

// Image is the minimal view of a loaded bytecode image the machine
// needs. internal/image.Image satisfies it.
type Image interface {
	Code() []byte
	StringAt(offset int32) []byte
	GlobalAreaSize() int
}

// rootsPublisher is the full contract the machine needs from
// internal/gcroots.Roots: a bottom marker set once at startup plus the
// per-push/pop top publication OperandStack already requires.
type rootsPublisher interface {
	gcPublisher
	SetBottom(index int)
}

// Machine is the interpreter: decoder, dual stacks, frame state, and
// the fetch/dispatch loop. It owns no allocation logic of its own -
// every allocating operation goes through Primitives.
type Machine struct {
	stack   *OperandStack
	control *ControlStack
	globals []Word

	code  []byte
	image Image
	prim  Primitives
	roots rootsPublisher

	ip int

	// Current frame view. args/locals are (base, len) pairs into the
	// operand stack; base is the index corresponding to the C
	// reference's address (see frame.go for the index arithmetic). bp
	// is the stack index recorded at BEGIN time, before locals are
	// pushed - the anchor both base fields are derived from.
	bp                    int
	argsBase, argsLen     int
	localsBase, localsLen int
	isClosure             bool
	closure               Word // only meaningful while isClosure
	closed                []Word

	err         error
	faultOffset int

	// Trace, when non-nil, receives one line per decoded instruction.
	// Diagnostic only - see SPEC_FULL.md section 9.
	Trace io.Writer
}

// topLevelArgs is the number of placeholder arguments pushed before
// execution starts at instruction 0, matching every worked example in
// spec section 8: main is always compiled as though it opens with
// BEGIN 2 0, taking two implicit top-level parameters the way the
// reference runtime hands a program its own argc/argv slots. This
// entry point has no real argv to forward (see spec section 6 - a
// single positional argument, no other invocation state), so both
// placeholders are BOX(0).
const topLevelArgs = 2

// NewMachine builds a machine ready to execute img from instruction 0.
// The caller is expected to have already initialized __init-equivalent
// state inside prim.
func NewMachine(img Image, prim Primitives, roots rootsPublisher) *Machine {
	globals := make([]Word, img.GlobalAreaSize())
	for i := range globals {
		globals[i] = Box(0)
	}

	stack := NewOperandStack(defaultStackWords, roots)
	if roots != nil {
		roots.SetBottom(stack.SP())
	}
	for i := 0; i < topLevelArgs; i++ {
		_ = stack.Push(Box(0))
	}

	return &Machine{
		stack:   stack,
		control: NewControlStack(defaultStackWords),
		globals: globals,
		code:    img.Code(),
		image:   img,
		prim:    prim,
		roots:   roots,
	}
}

// Err returns the fatal error that stopped the machine, or nil if it
// is still running or finished normally.
func (m *Machine) Err() error { return m.err }

// Run executes instructions until EXIT, until the outermost frame's
// END empties the operand stack, or until a fatal error is recorded.
func (m *Machine) Run() error {
	for m.err == nil {
		if m.ip >= len(m.code) {
			m.fault(ErrCodeOutOfRange)
			break
		}

		m.faultOffset = m.ip
		halt, err := m.step()
		if err != nil {
			m.fault(err)
			break
		}
		if halt {
			break
		}
	}

	return m.err
}

func (m *Machine) readByte() (byte, error) {
	if m.ip >= len(m.code) {
		return 0, ErrCodeOutOfRange
	}
	b := m.code[m.ip]
	m.ip++
	return b, nil
}

func (m *Machine) readInt32() (int32, error) {
	if m.ip+4 > len(m.code) {
		return 0, ErrCodeOutOfRange
	}
	v := int32(uint32(m.code[m.ip]) | uint32(m.code[m.ip+1])<<8 |
		uint32(m.code[m.ip+2])<<16 | uint32(m.code[m.ip+3])<<24)
	m.ip += 4
	return v, nil
}

func (m *Machine) jump(offset int32) error {
	if offset < 0 || int(offset) > len(m.code) {
		return ErrCodeOutOfRange
	}
	m.ip = int(offset)
	return nil
}

func (m *Machine) trace(format string, args ...any) {
	if m.Trace == nil {
		return
	}
	fmt.Fprintf(m.Trace, format, args...)
}
