package runtime

import "github.com/OldKrab/lama-interpreter/internal/vm"

// heapObject is the marker every allocated (boxed) object satisfies.
// It exists so the arena can hold a single slice of a common interface
// rather than several parallel typed arenas.
type heapObject interface {
	kind() string
}

type stringObj struct {
	data []byte
}

func (*stringObj) kind() string { return "string" }

type arrayObj struct {
	elems []vm.Word
}

func (*arrayObj) kind() string { return "array" }

type sexpObj struct {
	tag   int32
	elems []vm.Word
}

func (*sexpObj) kind() string { return "sexp" }

type closureObj struct {
	entry    int32
	captured []vm.Word
}

func (*closureObj) kind() string { return "closure" }

// refObj wraps a genuine Go pointer into the operand stack, globals,
// or a closure's captured-value slice. It is how LDA/STI round-trip a
// "memory cell" through a boxed word without the interpreter ever
// treating raw addresses as integers.
type refObj struct {
	cell *vm.Word
}

func (*refObj) kind() string { return "ref" }
