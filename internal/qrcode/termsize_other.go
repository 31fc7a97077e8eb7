//go:build !unix

package qrcode

import "os"

// TerminalWidth returns fallback; window size is only queried on unix.
func TerminalWidth(f *os.File, fallback int) int {
	return fallback
}
