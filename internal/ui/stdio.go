package ui

import (
	"os"

	"github.com/AlecAivazis/survey/v2/terminal"
)

// stdio wires prompts to the real terminal. Prompt text is drawn on stderr
// like every other operator-facing line.
func stdio() (terminal.FileReader, terminal.FileWriter, *os.File) {
	return os.Stdin, os.Stderr, os.Stderr
}
