package vm

import "fmt"

// Group is the high nibble of an opcode byte; Variant is the low
// nibble. Every instruction in the image decodes to exactly one
// (Group, Variant) pair.
type Group byte

const (
	GroupBinop    Group = 0x0
	GroupData     Group = 0x1
	GroupLd       Group = 0x2
	GroupLda      Group = 0x3
	GroupSt       Group = 0x4
	GroupControl  Group = 0x5
	GroupPatt     Group = 0x6
	GroupCallPrim Group = 0x7
	GroupExit     Group = 0xF
)

// Variant selectors, scoped per group the same way bytecode.go scopes
// its instruction constants - the numeric value only means something
// alongside its Group.
const (
	// GroupData variants
	DataConst Variant = 0
	DataString Variant = 1
	DataSexp   Variant = 2
	DataSti    Variant = 3
	DataSta    Variant = 4
	DataJump   Variant = 5
	DataEnd    Variant = 6
	DataRet    Variant = 7
	DataDrop   Variant = 8
	DataDup    Variant = 9
	DataSwap   Variant = 10
	DataElem   Variant = 11

	// GroupControl variants
	ControlCjmpz   Variant = 0
	ControlCjmpnz  Variant = 1
	ControlBegin   Variant = 2
	ControlCbegin  Variant = 3
	ControlClosure Variant = 4
	ControlCallc   Variant = 5
	ControlCall    Variant = 6
	ControlTag     Variant = 7
	ControlArray   Variant = 8
	ControlFail    Variant = 9
	ControlLine    Variant = 10

	// GroupPatt variants
	PattStrEq  Variant = 0
	PattString Variant = 1
	PattArray  Variant = 2
	PattSexp   Variant = 3
	PattRef    Variant = 4
	PattVal    Variant = 5
	PattFun    Variant = 6

	// GroupCallPrim variants
	PrimRead   Variant = 0
	PrimWrite  Variant = 1
	PrimLength Variant = 2
	PrimString Variant = 3
	PrimArray  Variant = 4
)

// Variant is the low nibble of an opcode byte.
type Variant byte

// BinopKind names the 13 BINOP variants (1..13); variant 0 is unused.
type BinopKind byte

const (
	BinopAdd BinopKind = iota + 1
	BinopSub
	BinopMul
	BinopDiv
	BinopMod
	BinopLt
	BinopLe
	BinopGt
	BinopGe
	BinopEq
	BinopNe
	BinopAnd
	BinopOr
)

// MemKind names the four addressable slices a frame exposes.
type MemKind byte

const (
	MemGlobal MemKind = 0
	MemLocal  MemKind = 1
	MemArg    MemKind = 2
	MemClosed MemKind = 3
)

func (m MemKind) String() string {
	switch m {
	case MemGlobal:
		return "G"
	case MemLocal:
		return "L"
	case MemArg:
		return "A"
	case MemClosed:
		return "C"
	default:
		return "?"
	}
}

// splitOpcode separates an opcode byte into its group and variant,
// mirroring the decoder convention in spec section 4.1.
func splitOpcode(b byte) (Group, Variant) {
	return Group(b >> 4), Variant(b & 0x0F)
}

func (g Group) String() string {
	switch g {
	case GroupBinop:
		return "BINOP"
	case GroupData:
		return "DATA"
	case GroupLd:
		return "LD"
	case GroupLda:
		return "LDA"
	case GroupSt:
		return "ST"
	case GroupControl:
		return "CONTROL"
	case GroupPatt:
		return "PATT"
	case GroupCallPrim:
		return "CALL-PRIM"
	case GroupExit:
		return "EXIT"
	default:
		return fmt.Sprintf("?group(%d)?", byte(g))
	}
}
