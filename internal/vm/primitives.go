package vm

// Primitives is the runtime-primitive boundary from spec section 6:
// everything the interpreter needs from the external allocation,
// inspection and I/O layer. internal/runtime.Library implements it;
// the vm package only ever sees this interface, so handlers never
// reach past the declared contract into heap-object internals.
type Primitives interface {
	// Bstring allocates a managed string copy of src and returns a
	// boxed handle to it.
	Bstring(src []byte) Word
	// Lstring returns a boxed string handle holding v's textual form.
	Lstring(v Word) Word
	// Llength returns the unboxed length of an array/string/s-expr.
	Llength(v Word) (int32, error)
	// Belem reads container[idx] (idx boxed).
	Belem(container, idx Word) (Word, error)
	// Bsta performs the STA indexed-store contract: if idxOrRef is a
	// reference cell it writes through it and returns value;
	// otherwise it stores value at the unboxed index idx into
	// container and returns container.
	Bsta(value, idxOrRef, container Word) (Word, error)

	// BarrayInitFromEnd allocates an array from elems (elems[0] is
	// the leftmost/deepest source element).
	BarrayInitFromEnd(elems []Word) Word
	// BsexpInitFromEnd allocates a tagged s-expression.
	BsexpInitFromEnd(tagHash int32, elems []Word) Word
	// BclosureInitFromEnd allocates a closure with the given entry
	// offset and captured values (captured[0] is the first listed
	// capture).
	BclosureInitFromEnd(entry int32, captured []Word) Word

	// LtagHash hashes a tag name into the runtime's tag domain.
	LtagHash(name string) int32

	// Pattern tests - each returns a boxed 0/1.
	Btag(v Word, tagHash int32, n int32) Word
	BarrayPatt(v Word, n int32) Word
	BstringPatt(v, expect Word) Word
	BsexpPatt(v Word) Word
	BboxedPatt(v Word) Word
	BunboxedPatt(v Word) Word
	BfunPatt(v Word) Word

	// NewRef boxes a reference to a memory cell for LDA/STI.
	NewRef(cell *Word) Word
	// Deref resolves a reference previously produced by NewRef. ok is
	// false if w is not a reference handle.
	Deref(w Word) (cell *Word, ok bool)

	// ClosureEntry reads back a closure's entry offset and captured
	// values, used by CALLC/CBEGIN.
	ClosureEntry(w Word) (entry int32, captured []Word, ok bool)

	// Lread/Lwrite perform the blocking stdin/stdout integer I/O.
	Lread() (int32, error)
	Lwrite(n int32) (int32, error)
}
