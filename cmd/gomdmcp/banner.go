package main

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// isTTY returns true if the given file descriptor is a terminal.
func isTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// printBanner prints the gomdmcp ASCII art banner. When useColor is true,
// ANSI escape codes are used for a yellow-to-blue gradient.
func printBanner(w io.Writer, useColor bool) {
	lines := []string{
		`                                                      `,
		`   __ _  ___  _ __ ___   __| |_ __ ___   ___ _ __    `,
		`  / _' |/ _ \| '_ ' _ \ / _' | '_ ' _ \ / __| '_ \   `,
		` | (_| | (_) | | | | | | (_| | | | | | | (__| |_) |  `,
		`  \__, |\___/|_| |_| |_|\__,_|_| |_| |_|\___| .__/   `,
		`  |___/                                     |_|      `,
		`                                                      `,
	}

	if !useColor {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		return
	}

	colors := []string{
		"\033[1;33m", // bold yellow
		"\033[1;33m", // bold yellow
		"\033[1;93m", // bold bright yellow
		"\033[1;36m", // bold cyan
		"\033[1;34m", // bold blue
		"\033[1;94m", // bold bright blue
		"\033[0m",    // reset (blank line)
	}
	for i, line := range lines {
		fmt.Fprintf(w, "%s%s\033[0m\n", colors[i%len(colors)], line)
	}
}
