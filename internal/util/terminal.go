package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// ProgressWidth returns a bar width that fits the stderr terminal, or 40
// when stderr is not a terminal
func ProgressWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return 40
	}
	// Leave room for the description and counters
	if width-50 < 10 {
		return 10
	}
	if width-50 > 40 {
		return 40
	}
	return width - 50
}
