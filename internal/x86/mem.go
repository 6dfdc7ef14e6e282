package x86

// This file covers every instruction form that touches the tape-cell
// memory operand [Base + Index*Scale] (spec §4.G's effective-address
// calculation), parameterized by cell width in bytes (1, 2, or 4) per
// spec's per-cell-width code generator instantiation.

// operandSizePrefix returns the 0x66 legacy prefix needed for a 16-bit
// operand, or nil otherwise. It must precede the REX prefix in the
// instruction's byte stream.
func operandSizePrefix(width int) []byte {
	if width == 2 {
		return []byte{0x66}
	}
	return nil
}

// LoadCellZX zero-extends the cell at mem into the low bits of dst32.
// Width 4 needs a plain 32-bit load since the cell already occupies the
// full register; widths 1 and 2 need MOVZX to clear the upper bits.
func LoadCellZX(width int, dst Reg, mem Mem) []byte {
	mrm, sibByte, needX, needB := mem.encode(dst.low3())
	switch width {
	case 4:
		out := []byte{rex(false, dst.ext(), needX, needB), 0x8B, mrm, sibByte}
		return out
	case 2:
		return []byte{rex(false, dst.ext(), needX, needB), 0x0F, 0xB7, mrm, sibByte}
	case 1:
		return []byte{rex(false, dst.ext(), needX, needB), 0x0F, 0xB6, mrm, sibByte}
	default:
		panic("x86: unsupported cell width")
	}
}

// StoreCell writes the low width-bytes of src into the cell at mem.
func StoreCell(width int, mem Mem, src Reg) []byte {
	mrm, sibByte, needX, needB := mem.encode(src.low3())
	prefix := operandSizePrefix(width)
	var opcode byte
	if width == 1 {
		opcode = 0x88
	} else {
		opcode = 0x89
	}
	out := append([]byte{}, prefix...)
	out = append(out, rex(false, src.ext(), needX, needB), opcode, mrm, sibByte)
	return out
}

// AddImmToCell adds imm (already reduced to fit the operand width by the
// caller) directly into the cell at mem — the Add(k) opcode.
func AddImmToCell(width int, mem Mem, imm int64) []byte {
	return immToCell(width, mem, imm, 0 /* ADD opcode extension */)
}

// MovImmToCell stores imm directly into the cell at mem — the Const(k)
// opcode.
func MovImmToCell(width int, mem Mem, imm int64) []byte {
	mrm, sibByte, needX, needB := mem.encode(0)
	prefix := operandSizePrefix(width)
	out := append([]byte{}, prefix...)
	out = append(out, rex(false, false, needX, needB))
	switch width {
	case 4:
		out = append(out, 0xC7, mrm, sibByte)
		return append(out, le32(int32(imm))...)
	case 2:
		out = append(out, 0xC7, mrm, sibByte)
		return append(out, le16(int16(imm))...)
	case 1:
		out = append(out, 0xC6, mrm, sibByte, byte(imm))
		return out
	default:
		panic("x86: unsupported cell width")
	}
}

// immToCell implements the r/m, imm family of opcodes (0x80/0x81 for ADD
// and friends) parameterized by the ModRM opcode-extension field.
func immToCell(width int, mem Mem, imm int64, ext byte) []byte {
	mrm, sibByte, needX, needB := mem.encode(ext)
	prefix := operandSizePrefix(width)
	out := append([]byte{}, prefix...)
	out = append(out, rex(false, false, needX, needB))
	switch width {
	case 4:
		out = append(out, 0x81, mrm, sibByte)
		return append(out, le32(int32(imm))...)
	case 2:
		out = append(out, 0x81, mrm, sibByte)
		return append(out, le16(int16(imm))...)
	case 1:
		out = append(out, 0x80, mrm, sibByte, byte(imm))
		return out
	default:
		panic("x86: unsupported cell width")
	}
}

// AddRegToCellCombine adds the low width-bytes of src directly into the
// cell at mem in one read-modify-write instruction — the final step of
// Mul's emission (the accumulator is added straight into the remote cell).
func AddRegToCellCombine(width int, mem Mem, src Reg) []byte {
	mrm, sibByte, needX, needB := mem.encode(src.low3())
	prefix := operandSizePrefix(width)
	var opcode byte
	if width == 1 {
		opcode = 0x00
	} else {
		opcode = 0x01
	}
	out := append([]byte{}, prefix...)
	out = append(out, rex(false, src.ext(), needX, needB), opcode, mrm, sibByte)
	return out
}
