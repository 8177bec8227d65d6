package compiler

import (
	"bytes"
	"testing"
)

func TestFlushEncodesPushRBP(t *testing.T) {
	e := &Encoder{}
	got := e.OpcodePlusReg(0x50, RBP).Flush()
	want := []byte{0x55} // push rbp, no REX needed
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestFlushEncodesMovRbpRsp(t *testing.T) {
	e := &Encoder{}
	got := e.REX(true, false, false, false).Opcode(0x89).ModRM(0b11, RSP, RBP).Flush()
	want := []byte{0x48, 0x89, 0xE5} // mov rbp, rsp
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestFlushSetsRexBForExtendedRegister(t *testing.T) {
	e := &Encoder{}
	got := e.OpcodePlusReg(0x50, R12).Flush()
	want := []byte{0x41, 0x54} // push r12
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestFlushResetsEncoderForReuse(t *testing.T) {
	e := &Encoder{}
	e.REX(true, false, false, false).Opcode(0x89).ModRM(0b11, RSP, RBP).Flush()
	got := e.OpcodePlusReg(0x58, RBP).Flush()
	want := []byte{0x5D} // pop rbp, no leftover REX/ModRM from the previous instruction
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x (Flush must fully reset encoder state)", got, want)
	}
}

func TestImm32LittleEndian(t *testing.T) {
	e := &Encoder{}
	got := e.Opcode(0x05).Imm32(0x01020304).Flush()
	want := []byte{0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestSetSinkReceivesEveryFlush(t *testing.T) {
	var recorded [][]byte
	e := (&Encoder{}).SetSink(func(b []byte) {
		cp := append([]byte{}, b...)
		recorded = append(recorded, cp)
	})
	e.Opcode(0x90).Flush()
	e.Opcode(0xC3).Flush()
	if len(recorded) != 2 {
		t.Fatalf("sink recorded %d instructions, want 2", len(recorded))
	}
	if recorded[0][0] != 0x90 || recorded[1][0] != 0xC3 {
		t.Errorf("recorded = %v, want [[0x90] [0xC3]]", recorded)
	}
}

func TestSinkSurvivesReset(t *testing.T) {
	var n int
	e := (&Encoder{}).SetSink(func(b []byte) { n++ })
	e.Reset()
	e.Opcode(0x90).Flush()
	if n != 1 {
		t.Errorf("sink must survive an explicit Reset, got %d calls", n)
	}
}
