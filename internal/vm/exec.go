package vm

// step decodes and executes exactly one instruction. It returns
// halt=true when execution should stop without error (EXIT, or an
// END that empties the operand stack - the return from main).
func (m *Machine) step() (halt bool, err error) {
	opByte, err := m.readByte()
	if err != nil {
		return false, err
	}
	group, variant := splitOpcode(opByte)

	if m.Trace != nil {
		m.trace("%04d: %s/%d\n", m.faultOffset, group, variant)
	}

	switch group {
	case GroupBinop:
		return false, m.execBinop(BinopKind(variant))
	case GroupData:
		return m.execData(variant)
	case GroupLd:
		return false, m.execLd(MemKind(variant))
	case GroupLda:
		return false, m.execLda(MemKind(variant))
	case GroupSt:
		return false, m.execSt(MemKind(variant))
	case GroupControl:
		return m.execControl(variant)
	case GroupPatt:
		return false, m.execPatt(variant)
	case GroupCallPrim:
		return false, m.execCallPrim(variant)
	case GroupExit:
		return true, nil
	default:
		return false, ErrUnknownOpcode
	}
}

func (m *Machine) execBinop(kind BinopKind) error {
	rhs, err := m.stack.Pop()
	if err != nil {
		return err
	}
	lhs, err := m.stack.Pop()
	if err != nil {
		return err
	}
	if !Unboxed(lhs) || !Unboxed(rhs) {
		return ErrTagMismatch
	}
	a, b := Unbox(lhs), Unbox(rhs)

	var r int32
	boolResult := false
	switch kind {
	case BinopAdd:
		r = a + b
	case BinopSub:
		r = a - b
	case BinopMul:
		r = a * b
	case BinopDiv:
		if b == 0 {
			return ErrDivideByZero
		}
		r = a / b
	case BinopMod:
		if b == 0 {
			return ErrDivideByZero
		}
		r = a % b
	case BinopLt:
		boolResult = a < b
	case BinopLe:
		boolResult = a <= b
	case BinopGt:
		boolResult = a > b
	case BinopGe:
		boolResult = a >= b
	case BinopEq:
		boolResult = a == b
	case BinopNe:
		boolResult = a != b
	case BinopAnd:
		boolResult = a != 0 && b != 0
	case BinopOr:
		boolResult = a != 0 || b != 0
	default:
		return ErrUnknownOpcode
	}

	switch kind {
	case BinopLt, BinopLe, BinopGt, BinopGe, BinopEq, BinopNe, BinopAnd, BinopOr:
		if boolResult {
			r = 1
		} else {
			r = 0
		}
	}
	return m.stack.Push(Box(r))
}

func (m *Machine) execData(variant Variant) (bool, error) {
	switch variant {
	case DataConst:
		n, err := m.readInt32()
		if err != nil {
			return false, err
		}
		return false, m.stack.Push(Box(n))

	case DataString:
		off, err := m.readInt32()
		if err != nil {
			return false, err
		}
		return false, m.stack.Push(m.prim.Bstring(m.image.StringAt(off)))

	case DataSexp:
		tagOff, err := m.readInt32()
		if err != nil {
			return false, err
		}
		n, err := m.readInt32()
		if err != nil {
			return false, err
		}
		elems, err := m.popN(int(n))
		if err != nil {
			return false, err
		}
		tagHash := m.prim.LtagHash(string(m.image.StringAt(tagOff)))
		return false, m.stack.Push(m.prim.BsexpInitFromEnd(tagHash, elems))

	case DataSti:
		value, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		refWord, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		cell, ok := m.prim.Deref(refWord)
		if !ok {
			return false, ErrTagMismatch
		}
		*cell = value
		return false, nil

	case DataSta:
		value, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		idxOrRef, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		var container Word
		if Unboxed(idxOrRef) {
			container, err = m.stack.Pop()
			if err != nil {
				return false, err
			}
		} else {
			// The index slot already held a reference. The source
			// passes it as both arguments in this branch; kept
			// deliberately (see DESIGN.md).
			container = idxOrRef
		}
		result, err := m.prim.Bsta(value, idxOrRef, container)
		if err != nil {
			return false, err
		}
		return false, m.stack.Push(result)

	case DataJump:
		off, err := m.readInt32()
		if err != nil {
			return false, err
		}
		return false, m.jump(off)

	case DataEnd, DataRet:
		return m.end()

	case DataDrop:
		_, err := m.stack.Pop()
		return false, err

	case DataDup:
		v, err := m.stack.Peek(0)
		if err != nil {
			return false, err
		}
		return false, m.stack.Push(v)

	case DataSwap:
		a, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		b, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		if err := m.stack.Push(a); err != nil {
			return false, err
		}
		return false, m.stack.Push(b)

	case DataElem:
		idx, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		container, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		v, err := m.prim.Belem(container, idx)
		if err != nil {
			return false, err
		}
		return false, m.stack.Push(v)

	default:
		return false, ErrUnknownOpcode
	}
}

// popN pops n values and returns them in source order: elems[0] is
// the deepest (leftmost) one, matching BarrayInitFromEnd/
// BsexpInitFromEnd/BclosureInitFromEnd's expectations.
func (m *Machine) popN(n int) ([]Word, error) {
	elems := make([]Word, n)
	for i := n - 1; i >= 0; i-- {
		v, err := m.stack.Pop()
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return elems, nil
}

func (m *Machine) execLd(mem MemKind) error {
	idx, err := m.readInt32()
	if err != nil {
		return err
	}
	cell, err := m.slot(mem, idx)
	if err != nil {
		return err
	}
	return m.stack.Push(*cell)
}

func (m *Machine) execLda(mem MemKind) error {
	idx, err := m.readInt32()
	if err != nil {
		return err
	}
	cell, err := m.slot(mem, idx)
	if err != nil {
		return err
	}
	return m.stack.Push(m.prim.NewRef(cell))
}

func (m *Machine) execSt(mem MemKind) error {
	idx, err := m.readInt32()
	if err != nil {
		return err
	}
	cell, err := m.slot(mem, idx)
	if err != nil {
		return err
	}
	top, err := m.stack.Peek(0)
	if err != nil {
		return err
	}
	*cell = top
	return nil
}

func (m *Machine) execControl(variant Variant) (bool, error) {
	switch variant {
	case ControlCjmpz, ControlCjmpnz:
		off, err := m.readInt32()
		if err != nil {
			return false, err
		}
		v, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		if !Unboxed(v) {
			return false, ErrTagMismatch
		}
		zero := Unbox(v) == 0
		if (variant == ControlCjmpz) == zero {
			return false, m.jump(off)
		}
		return false, nil

	case ControlBegin:
		argc, locn, err := m.readTwoInt32()
		if err != nil {
			return false, err
		}
		return false, m.begin(argc, locn)

	case ControlCbegin:
		argc, locn, err := m.readTwoInt32()
		if err != nil {
			return false, err
		}
		if err := m.begin(argc, locn); err != nil {
			return false, err
		}
		return false, m.loadClosed()

	case ControlClosure:
		entry, k, err := m.readTwoInt32()
		if err != nil {
			return false, err
		}
		captured := make([]Word, k)
		for i := int32(0); i < k; i++ {
			memByte, err := m.readByte()
			if err != nil {
				return false, err
			}
			idx, err := m.readInt32()
			if err != nil {
				return false, err
			}
			cell, err := m.slot(MemKind(memByte), idx)
			if err != nil {
				return false, err
			}
			captured[i] = *cell
		}
		return false, m.stack.Push(m.prim.BclosureInitFromEnd(entry, captured))

	case ControlCallc:
		argc, err := m.readInt32()
		if err != nil {
			return false, err
		}
		target, err := m.closureTarget(argc)
		if err != nil {
			return false, err
		}
		return false, m.call(target, true)

	case ControlCall:
		target, _, err := m.readTwoInt32()
		if err != nil {
			return false, err
		}
		return false, m.call(target, false)

	case ControlTag:
		nameOff, n, err := m.readTwoInt32()
		if err != nil {
			return false, err
		}
		v, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		tagHash := m.prim.LtagHash(string(m.image.StringAt(nameOff)))
		return false, m.stack.Push(m.prim.Btag(v, tagHash, n))

	case ControlArray:
		n, err := m.readInt32()
		if err != nil {
			return false, err
		}
		v, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		return false, m.stack.Push(m.prim.BarrayPatt(v, n))

	case ControlFail:
		line, col, err := m.readTwoInt32()
		if err != nil {
			return false, err
		}
		return false, &ExplicitFail{Line: line, Col: col}

	case ControlLine:
		_, err := m.readInt32()
		return false, err

	default:
		return false, ErrUnknownOpcode
	}
}

func (m *Machine) readTwoInt32() (int32, int32, error) {
	a, err := m.readInt32()
	if err != nil {
		return 0, 0, err
	}
	b, err := m.readInt32()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (m *Machine) execPatt(variant Variant) error {
	switch variant {
	case PattStrEq:
		expect, err := m.stack.Pop()
		if err != nil {
			return err
		}
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.BstringPatt(v, expect))

	case PattString:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.BstringPatt(v, v))

	case PattArray:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.BarrayPatt(v, -1))

	case PattSexp:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.BsexpPatt(v))

	case PattRef:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.BboxedPatt(v))

	case PattVal:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.BunboxedPatt(v))

	case PattFun:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.BfunPatt(v))

	default:
		return ErrUnknownOpcode
	}
}

func (m *Machine) execCallPrim(variant Variant) error {
	switch variant {
	case PrimRead:
		n, err := m.prim.Lread()
		if err != nil {
			return err
		}
		return m.stack.Push(Box(n))

	case PrimWrite:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		if !Unboxed(v) {
			return ErrTagMismatch
		}
		n, err := m.prim.Lwrite(Unbox(v))
		if err != nil {
			return err
		}
		return m.stack.Push(Box(n))

	case PrimLength:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		n, err := m.prim.Llength(v)
		if err != nil {
			return err
		}
		return m.stack.Push(Box(n))

	case PrimString:
		v, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.Lstring(v))

	case PrimArray:
		n, err := m.readInt32()
		if err != nil {
			return err
		}
		elems, err := m.popN(int(n))
		if err != nil {
			return err
		}
		return m.stack.Push(m.prim.BarrayInitFromEnd(elems))

	default:
		return ErrUnknownOpcode
	}
}
