package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner shown by interactive commands.
func PrintBanner() {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{` __      __      _____ _   `, "#818cf8"},
		{` \ \    / /___  / ____| |_ `, "#a78bfa"},
		{`  \ \/\/ // -_) |  _|  |  _|`, "#c084fc"},
		{`   \_/\_/ \___| |_|     \__|`, "#e879f9"},
	}

	fmt.Println()
	for _, l := range lines {
		fmt.Println(termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Println()
}
