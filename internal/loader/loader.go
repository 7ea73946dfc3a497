// Package loader parses the Verilog-style `@address / hex bytes` memory
// image format read from standard input and writes it into a Memory.
//
// The wire format itself is spec-defined rather than drawn from any example
// repo, but the line-oriented bufio.Scanner reading style is grounded on
// bassosimone-risc32's pkg/vm.LoadBytecode, which reads its own (simpler,
// one-word-per-line) bytecode format the same way: one Scan loop, one
// switch per line shape, sentinel errors for malformed input instead of
// panicking.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/maemo32/rv32ooo/internal/memory"
)

// ErrMalformedInput is wrapped by every parse failure, so callers can detect
// the MalformedInput error kind with errors.Is without string matching.
var ErrMalformedInput = errors.New("malformed memory image input")

// Load reads a memory image from r and writes it into mem. Lines beginning
// with '@' set the write cursor; all other non-blank lines are whitespace-
// separated 2-hex-digit bytes written starting at the cursor, which
// advances by one per byte.
func Load(r io.Reader, mem *memory.Memory) error {
	scanner := bufio.NewScanner(r)
	cursor := uint32(0)
	haveCursor := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "@") {
			addr, err := strconv.ParseUint(line[1:], 16, 32)
			if err != nil {
				return fmt.Errorf("%w: bad address line %q: %v", ErrMalformedInput, line, err)
			}
			cursor = uint32(addr)
			haveCursor = true
			continue
		}

		if !haveCursor {
			return fmt.Errorf("%w: byte line %q before any @address line", ErrMalformedInput, line)
		}

		for _, tok := range strings.Fields(line) {
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				return fmt.Errorf("%w: bad byte token %q: %v", ErrMalformedInput, tok, err)
			}
			mem.WriteByte(cursor, uint8(b))
			cursor++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return nil
}
