package vm

// Word is the single machine-word representation used everywhere on the
// operand stack, in the globals region, and inside closure captures.
//
// An unboxed word stores 2*n+1 for the represented integer n (low bit
// set). A boxed word stores an even handle into the runtime's heap
// arena - see internal/runtime. The interpreter converts between the
// tagged and native forms only where an instruction needs the integer
// itself (CONST, BINOP, the conditional jumps, READ/WRITE/LENGTH) and
// at the primitive boundary; the operand stack always holds tagged words.
type Word uint64

// Box packs a signed integer into its tagged (unboxed) word form.
func Box(n int32) Word {
	return Word(uint64(int64(n)<<1 | 1))
}

// Unbox extracts the integer represented by an unboxed word. Callers
// must check Unboxed(w) first.
func Unbox(w Word) int32 {
	return int32(int64(w) >> 1)
}

// Unboxed reports whether w carries a small integer rather than a
// boxed heap handle.
func Unboxed(w Word) bool {
	return w&1 == 1
}

// Boxed is the logical complement of Unboxed, spelled out at call
// sites that read more naturally in the positive.
func Boxed(w Word) bool {
	return !Unboxed(w)
}
