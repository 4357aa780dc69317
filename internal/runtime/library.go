package runtime

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/OldKrab/lama-interpreter/internal/vm"
)

// Library is the runtime-primitive implementation the machine calls
// through vm.Primitives: allocation, elementwise access, pattern
// tests, and the two blocking integer-I/O primitives. It owns the
// heap arena and the stdin/stdout buffering - the one place in the
// module allowed to touch the real stdin.
type Library struct {
	heap arena

	in  *bufio.Reader
	out *bufio.Writer
}

// New builds a Library reading from r and writing to w. Both are
// wrapped in buffered adapters; callers that replace os.Stdin/Stdout
// with a *bytes.Buffer in tests get the same buffering behavior the
// real CLI entry point does.
func New(r io.Reader, w io.Writer) *Library {
	return &Library{
		in:  bufio.NewReader(r),
		out: bufio.NewWriter(w),
	}
}

// Flush drains any buffered stdout output; the entry point calls this
// once after Run returns, successfully or not.
func (l *Library) Flush() error {
	return l.out.Flush()
}

func (l *Library) Bstring(src []byte) vm.Word {
	cp := make([]byte, len(src))
	copy(cp, src)
	return l.heap.alloc(&stringObj{data: cp})
}

func (l *Library) Lstring(v vm.Word) vm.Word {
	return l.Bstring([]byte(l.formatWord(v)))
}

// formatWord renders v the way Lstring does, recursing into array and
// s-expression elements instead of formatting their raw Word handles.
func (l *Library) formatWord(v vm.Word) string {
	if vm.Unboxed(v) {
		return fmt.Sprintf("%d", vm.Unbox(v))
	}
	obj, ok := l.heap.get(v)
	if !ok {
		return ""
	}
	switch o := obj.(type) {
	case *stringObj:
		return string(o.data)
	case *arrayObj:
		return l.formatArray(o.elems)
	case *sexpObj:
		return l.formatSexp(o)
	default:
		return ""
	}
}

func (l *Library) formatArray(elems []vm.Word) string {
	s := "["
	for i, e := range elems {
		if i > 0 {
			s += ", "
		}
		s += l.formatWord(e)
	}
	return s + "]"
}

func (l *Library) formatSexp(o *sexpObj) string {
	s := fmt.Sprintf("<%d>", o.tag)
	if len(o.elems) == 0 {
		return s
	}
	s += " ("
	for i, e := range o.elems {
		if i > 0 {
			s += ", "
		}
		s += l.formatWord(e)
	}
	return s + ")"
}

func (l *Library) Llength(v vm.Word) (int32, error) {
	obj, ok := l.heap.get(v)
	if !ok {
		return 0, vm.ErrTagMismatch
	}
	switch o := obj.(type) {
	case *stringObj:
		return int32(len(o.data)), nil
	case *arrayObj:
		return int32(len(o.elems)), nil
	case *sexpObj:
		return int32(len(o.elems)), nil
	default:
		return 0, vm.ErrTagMismatch
	}
}

func (l *Library) Belem(container, idx vm.Word) (vm.Word, error) {
	if !vm.Unboxed(idx) {
		return 0, vm.ErrTagMismatch
	}
	i := int(vm.Unbox(idx))

	obj, ok := l.heap.get(container)
	if !ok {
		return 0, vm.ErrTagMismatch
	}
	switch o := obj.(type) {
	case *arrayObj:
		if i < 0 || i >= len(o.elems) {
			return 0, vm.ErrSliceOutOfRange
		}
		return o.elems[i], nil
	case *sexpObj:
		if i < 0 || i >= len(o.elems) {
			return 0, vm.ErrSliceOutOfRange
		}
		return o.elems[i], nil
	case *stringObj:
		if i < 0 || i >= len(o.data) {
			return 0, vm.ErrSliceOutOfRange
		}
		return vm.Box(int32(o.data[i])), nil
	default:
		return 0, vm.ErrTagMismatch
	}
}

// Bsta stores value at the position idxOrRef identifies. When idxOrRef
// is a reference cell it writes straight through it (the shape the
// source's STA takes when the index slot already held a boxed
// reference - see DESIGN.md); otherwise idxOrRef is an unboxed index
// into container.
func (l *Library) Bsta(value, idxOrRef, container vm.Word) (vm.Word, error) {
	if cell, ok := l.Deref(idxOrRef); ok {
		*cell = value
		return value, nil
	}

	if !vm.Unboxed(idxOrRef) {
		return 0, vm.ErrTagMismatch
	}
	i := int(vm.Unbox(idxOrRef))

	obj, ok := l.heap.get(container)
	if !ok {
		return 0, vm.ErrTagMismatch
	}
	switch o := obj.(type) {
	case *arrayObj:
		if i < 0 || i >= len(o.elems) {
			return 0, vm.ErrSliceOutOfRange
		}
		o.elems[i] = value
	case *sexpObj:
		if i < 0 || i >= len(o.elems) {
			return 0, vm.ErrSliceOutOfRange
		}
		o.elems[i] = value
	default:
		return 0, vm.ErrTagMismatch
	}
	return container, nil
}

func (l *Library) BarrayInitFromEnd(elems []vm.Word) vm.Word {
	cp := make([]vm.Word, len(elems))
	copy(cp, elems)
	return l.heap.alloc(&arrayObj{elems: cp})
}

func (l *Library) BsexpInitFromEnd(tagHash int32, elems []vm.Word) vm.Word {
	cp := make([]vm.Word, len(elems))
	copy(cp, elems)
	return l.heap.alloc(&sexpObj{tag: tagHash, elems: cp})
}

func (l *Library) BclosureInitFromEnd(entry int32, captured []vm.Word) vm.Word {
	cp := make([]vm.Word, len(captured))
	copy(cp, captured)
	return l.heap.alloc(&closureObj{entry: entry, captured: cp})
}

func (l *Library) LtagHash(name string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int32(h.Sum32() & 0x7FFFFFFF)
}

func (l *Library) Btag(v vm.Word, tagHash int32, n int32) vm.Word {
	obj, ok := l.heap.get(v)
	if !ok {
		return vm.Box(0)
	}
	s, ok := obj.(*sexpObj)
	if !ok || s.tag != tagHash || int32(len(s.elems)) != n {
		return vm.Box(0)
	}
	return vm.Box(1)
}

// BarrayPatt reports whether v is an array. When n is negative the
// length is not checked - the type-test PATT variant reuses this
// primitive without an arity to assert, unlike CONTROL's ARRAY n.
func (l *Library) BarrayPatt(v vm.Word, n int32) vm.Word {
	obj, ok := l.heap.get(v)
	if !ok {
		return vm.Box(0)
	}
	a, ok := obj.(*arrayObj)
	if !ok {
		return vm.Box(0)
	}
	if n >= 0 && int32(len(a.elems)) != n {
		return vm.Box(0)
	}
	return vm.Box(1)
}

// BstringPatt reports whether v is a string whose contents equal
// expect's. Passing v for both arguments (the PATT "is a string?"
// type test) degenerates to a reflexive compare, which only succeeds
// when v really is a string object.
func (l *Library) BstringPatt(v, expect vm.Word) vm.Word {
	vo, ok := l.heap.get(v)
	if !ok {
		return vm.Box(0)
	}
	vs, ok := vo.(*stringObj)
	if !ok {
		return vm.Box(0)
	}
	eo, ok := l.heap.get(expect)
	if !ok {
		return vm.Box(0)
	}
	es, ok := eo.(*stringObj)
	if !ok {
		return vm.Box(0)
	}
	if string(vs.data) != string(es.data) {
		return vm.Box(0)
	}
	return vm.Box(1)
}

func (l *Library) BsexpPatt(v vm.Word) vm.Word {
	obj, ok := l.heap.get(v)
	if !ok {
		return vm.Box(0)
	}
	if _, ok := obj.(*sexpObj); ok {
		return vm.Box(1)
	}
	return vm.Box(0)
}

func (l *Library) BboxedPatt(v vm.Word) vm.Word {
	if vm.Boxed(v) {
		return vm.Box(1)
	}
	return vm.Box(0)
}

func (l *Library) BunboxedPatt(v vm.Word) vm.Word {
	if vm.Unboxed(v) {
		return vm.Box(1)
	}
	return vm.Box(0)
}

func (l *Library) BfunPatt(v vm.Word) vm.Word {
	obj, ok := l.heap.get(v)
	if !ok {
		return vm.Box(0)
	}
	if _, ok := obj.(*closureObj); ok {
		return vm.Box(1)
	}
	return vm.Box(0)
}

func (l *Library) NewRef(cell *vm.Word) vm.Word {
	return l.heap.alloc(&refObj{cell: cell})
}

func (l *Library) Deref(w vm.Word) (*vm.Word, bool) {
	obj, ok := l.heap.get(w)
	if !ok {
		return nil, false
	}
	r, ok := obj.(*refObj)
	if !ok {
		return nil, false
	}
	return r.cell, true
}

func (l *Library) ClosureEntry(w vm.Word) (int32, []vm.Word, bool) {
	obj, ok := l.heap.get(w)
	if !ok {
		return 0, nil, false
	}
	c, ok := obj.(*closureObj)
	if !ok {
		return 0, nil, false
	}
	return c.entry, c.captured, true
}

func (l *Library) Lread() (int32, error) {
	var n int32
	_, err := fmt.Fscan(l.in, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (l *Library) Lwrite(n int32) (int32, error) {
	if _, err := fmt.Fprintf(l.out, "%d\n", n); err != nil {
		return 0, err
	}
	if err := l.out.Flush(); err != nil {
		return 0, err
	}
	return n, nil
}
