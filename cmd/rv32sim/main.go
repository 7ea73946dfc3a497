// Command rv32sim reads a memory image from standard input, runs it to
// completion on the out-of-order simulator, and prints the terminating
// program's result.
//
// Grounded on original_source/include/cpu.cpp's two historical main
// entry points (folded here into the single OoO-engine path the
// specification commits to) and on the teacher's own cmd-style main in
// SupraX.go, which likewise just wires stdin into the core and prints one
// final value. Diagnostics on fatal error paths use logrus, the same
// logger internal/engine uses for its debug traces; the golden path
// output itself is a single bare fmt.Println, never routed through the
// logger.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/maemo32/rv32ooo/internal/engine"
)

func main() {
	os.Exit(run())
}

func run() int {
	e := engine.New()

	if err := e.LoadProgram(os.Stdin); err != nil {
		logrus.WithError(err).Error("failed to load memory image")
		return 1
	}

	result, err := e.Run()
	if err != nil {
		logrus.WithError(err).Error("simulation aborted")
		return 1
	}

	fmt.Println(result)
	return 0
}
