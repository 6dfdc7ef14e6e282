package x86

// rex builds a REX prefix byte. w selects 64-bit operand size; r, x, b are
// the extension bits for the ModRM.reg, SIB.index, and
// ModRM.rm/SIB.base fields respectively.
func rex(w, r, x, b bool) byte {
	rexByte := byte(0x40)
	if w {
		rexByte |= 0x08
	}
	if r {
		rexByte |= 0x04
	}
	if x {
		rexByte |= 0x02
	}
	if b {
		rexByte |= 0x01
	}
	return rexByte
}

// modrm builds a ModR/M byte for a given addressing mode, reg field, and
// rm field (each already reduced to their 3-bit low form).
func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

// sib builds a SIB byte: scale exponent (0=1x, 1=2x, 2=4x, 3=8x), index
// register low3, base register low3.
func sib(scaleExp, index, base byte) byte {
	return (scaleExp << 6) | ((index & 7) << 3) | (base & 7)
}

// scaleExp converts a byte multiplier (1, 2, or 4 — this project never
// needs 8) into the SIB scale-field exponent.
func scaleExp(scale int) byte {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	default:
		panic("x86: unsupported SIB scale")
	}
}

// le16 little-endian encodes a 16-bit immediate.
func le16(v int16) []byte {
	u := uint16(v)
	return []byte{byte(u), byte(u >> 8)}
}

// le32 little-endian encodes a 32-bit immediate/displacement.
func le32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

// le64 little-endian encodes a 64-bit immediate.
func le64(v uint64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}

// Mem is an effective address of the shape this compiler ever generates:
// [Base + Index*Scale], the tape-cell addressing mode from spec §4.G
// ("[r10 + r11*1]", "[r10 + r11*2]", "[r10 + r11*4]"), reused for Mul's
// remote-cell address with Index swapped to rcx.
type Mem struct {
	Base  Reg
	Index Reg
	Scale int // 1, 2, or 4
}

// encode emits the ModRM+SIB bytes (no displacement: mod=00) together with
// the REX.X/REX.B bits they require, for a memory operand used with the
// given reg-field value (either a real register or an opcode extension).
func (m Mem) encode(regField byte) (modrmByte, sibByte byte, needX, needB bool) {
	modrmByte = modrm(0, regField, 0x4) // rm=100 signals SIB follows
	sibByte = sib(scaleExp(m.Scale), m.Index.low3(), m.Base.low3())
	return modrmByte, sibByte, m.Index.ext(), m.Base.ext()
}
