//go:build unix

package qrcode

import (
	"os"

	"golang.org/x/sys/unix"
)

// TerminalWidth returns the column count of f, or fallback when f is not a
// terminal.
func TerminalWidth(f *os.File, fallback int) int {
	ws, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return fallback
	}
	return int(ws.Col)
}
