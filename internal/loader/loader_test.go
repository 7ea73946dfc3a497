package loader

import (
	"errors"
	"strings"
	"testing"

	"github.com/maemo32/rv32ooo/internal/memory"
)

func TestLoad_SimpleImage(t *testing.T) {
	input := "@00000000\n13 05 50 00\n\n@00000010\nAB\n"
	m := memory.New()
	if err := Load(strings.NewReader(input), m); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if m.ReadWord(0) != 0x00500513 {
		t.Fatalf("ReadWord(0) = %#x, want 0x00500513", m.ReadWord(0))
	}
	if m.ReadByte(0x10) != 0xAB {
		t.Fatalf("ReadByte(0x10) = %#x, want 0xAB", m.ReadByte(0x10))
	}
}

func TestLoad_CursorAdvancesPerByte(t *testing.T) {
	input := "@00000000\n01 02\n03\n"
	m := memory.New()
	if err := Load(strings.NewReader(input), m); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if m.ReadByte(0) != 1 || m.ReadByte(1) != 2 || m.ReadByte(2) != 3 {
		t.Fatal("cursor should advance by one per byte across lines")
	}
}

func TestLoad_BadAddressLine(t *testing.T) {
	m := memory.New()
	err := Load(strings.NewReader("@XYZ\n"), m)
	if err == nil || !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("Load(bad address) = %v, want ErrMalformedInput", err)
	}
}

func TestLoad_ByteLineBeforeAnyAddress(t *testing.T) {
	m := memory.New()
	err := Load(strings.NewReader("01 02\n"), m)
	if err == nil || !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("Load(bytes before @addr) = %v, want ErrMalformedInput", err)
	}
}

func TestLoad_BadByteToken(t *testing.T) {
	m := memory.New()
	err := Load(strings.NewReader("@0\nZZ\n"), m)
	if err == nil || !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("Load(bad byte token) = %v, want ErrMalformedInput", err)
	}
}
