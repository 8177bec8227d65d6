package compiler

// Reg is a hardware GPR index, RAX..R15 = 0..15, following the standard
// x86-64 encoding (see jit_emit_amd64.go's RegRAX..RegR15 in the teacher,
// which this mirrors one-for-one since it's the same ISA).
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

var regNames = [16]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}

func (r Reg) String() string { return regNames[r&0xF] }

// opEscape identifies the opcode-map escape byte sequence an instruction
// needs before its opcode byte.
type opEscape uint8

const (
	escNone opEscape = iota
	esc0F
)

// Encoder assembles one x86-64 instruction at a time from its logical
// fields — REX bits, opcode escape, opcode byte, ModR/M, immediate,
// displacement — set in any order, then flushed to a byte slice. It
// never fails; the caller is responsible for field validity (spec §4.1).
//
// This is the Go-owned-value counterpart of the teacher's JITWriter
// (jit_writer.go / jit_emit_amd64.go): same field-then-flush idea, same
// REX/ModRM math, but passed around as an explicit *Encoder instead of
// writing through an unsafe.Pointer into mmap'd memory, since this
// compiler emits into an in-memory []byte destined for an ELF section
// rather than into directly-executable pages.
type Encoder struct {
	rexW, rexR, rexX, rexB bool
	hasRex                 bool

	escape opEscape
	opcode byte
	hasOp  bool

	hasModRM bool
	mod      byte
	regField byte
	rm       byte

	immBytes  []byte
	dispBytes []byte

	sink func([]byte)
}

// Reset clears every field, equivalent to constructing a fresh Encoder,
// except it preserves a sink installed by SetSink.
func (e *Encoder) Reset() {
	sink := e.sink
	*e = Encoder{sink: sink}
}

// SetSink installs a callback invoked with the bytes of every
// instruction as Flush produces them, for package trace's real-time
// instruction feed. A nil sink (the default) disables this with no
// overhead beyond the nil check.
func (e *Encoder) SetSink(sink func([]byte)) *Encoder {
	e.sink = sink
	return e
}

// REX sets which REX bits are present. W marks a 64-bit operand size; R
// extends the ModR/M reg field; X extends the SIB index (unused by this
// instruction set, kept for completeness); B extends ModR/M rm or the
// opcode's embedded register.
func (e *Encoder) REX(w, r, x, b bool) *Encoder {
	e.rexW, e.rexR, e.rexX, e.rexB = w, r, x, b
	e.hasRex = w || r || x || b
	return e
}

// RegExtends reports whether r needs REX.R/B/X (r >= R8).
func RegExtends(r Reg) bool { return r >= R8 }

// Escape0F marks a two-byte opcode (0x0F prefix before the opcode byte).
func (e *Encoder) Escape0F() *Encoder {
	e.escape = esc0F
	return e
}

// Opcode sets the opcode byte.
func (e *Encoder) Opcode(b byte) *Encoder {
	e.opcode = b
	e.hasOp = true
	return e
}

// OpcodePlusReg sets the opcode byte with a register embedded in its low
// three bits, the +rd encoding used by e.g. MOV r64, imm64 (0xB8+rd) and
// PUSH/POP (0x50+rd/0x58+rd).
func (e *Encoder) OpcodePlusReg(base byte, r Reg) *Encoder {
	e.opcode = base + byte(r&7)
	e.hasOp = true
	if RegExtends(r) {
		e.rexB = true
		e.hasRex = true
	}
	return e
}

// ModRM sets the ModR/M byte from its three logical fields: mod (0-3),
// the reg field (either a second register operand or an opcode
// extension /digit), and rm (the r/m operand). reg and rm are masked to
// their low 3 bits; callers pass the full Reg value so this function can
// also set the matching REX.R/REX.B bit.
func (e *Encoder) ModRM(mod byte, reg Reg, rm Reg) *Encoder {
	e.hasModRM = true
	e.mod = mod & 0x3
	e.regField = byte(reg & 7)
	e.rm = byte(rm & 7)
	if RegExtends(reg) {
		e.rexR = true
		e.hasRex = true
	}
	if RegExtends(rm) {
		e.rexB = true
		e.hasRex = true
	}
	return e
}

// ModRMDigit is ModRM with a literal opcode-extension digit (the /n
// notation in the instruction tables) instead of a second register.
func (e *Encoder) ModRMDigit(mod byte, digit byte, rm Reg) *Encoder {
	e.hasModRM = true
	e.mod = mod & 0x3
	e.regField = digit & 7
	e.rm = byte(rm & 7)
	if RegExtends(rm) {
		e.rexB = true
		e.hasRex = true
	}
	return e
}

func leBytes(v int64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// Imm8/Imm32/Imm64 append a little-endian immediate of the given width.
func (e *Encoder) Imm8(v int8) *Encoder   { e.immBytes = leBytes(int64(v), 1); return e }
func (e *Encoder) Imm32(v int32) *Encoder { e.immBytes = leBytes(int64(v), 4); return e }
func (e *Encoder) Imm64(v int64) *Encoder { e.immBytes = leBytes(v, 8); return e }

// Disp8/Disp32 append a little-endian displacement of the given width.
func (e *Encoder) Disp8(v int8) *Encoder   { e.dispBytes = leBytes(int64(v), 1); return e }
func (e *Encoder) Disp32(v int32) *Encoder { e.dispBytes = leBytes(int64(v), 4); return e }

// Flush assembles the configured fields into their final byte sequence:
// [REX][escape][opcode][ModR/M][immediate][displacement], then resets
// the encoder for its next use. The result is at most 15 bytes, the
// x86-64 maximum instruction length.
func (e *Encoder) Flush() []byte {
	var out []byte
	if e.hasRex {
		rex := byte(0x40)
		if e.rexW {
			rex |= 0x08
		}
		if e.rexR {
			rex |= 0x04
		}
		if e.rexX {
			rex |= 0x02
		}
		if e.rexB {
			rex |= 0x01
		}
		out = append(out, rex)
	}
	if e.escape == esc0F {
		out = append(out, 0x0F)
	}
	if e.hasOp {
		out = append(out, e.opcode)
	}
	if e.hasModRM {
		out = append(out, (e.mod<<6)|(e.regField<<3)|e.rm)
	}
	out = append(out, e.immBytes...)
	out = append(out, e.dispBytes...)
	if e.sink != nil {
		e.sink(out)
	}
	e.Reset()
	return out
}
