package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/storyweb/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderType returns s in the terminal color closest to the relationship
// type's diagram stroke color.
func RenderType(t model.RelationshipType, s string) string {
	code, ok := HexToANSI256(t.DefaultColor())
	if !ok {
		return s
	}
	return render(code, s)
}

// RenderHex returns s in the terminal color closest to a "#rrggbb" color.
// Anything else is returned unstyled.
func RenderHex(hex, s string) string {
	code, ok := HexToANSI256(hex)
	if !ok {
		return s
	}
	return render(code, s)
}

// HexToANSI256 maps a "#rrggbb" color onto the 6x6x6 cube of the 256-color
// palette.
func HexToANSI256(hex string) (int, bool) {
	h, ok := strings.CutPrefix(hex, "#")
	if !ok || len(h) != 6 {
		return 0, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, false
	}
	level := func(c uint64) int { return int((c*5 + 127) / 255) }
	r, g, b := level(v>>16&0xff), level(v>>8&0xff), level(v&0xff)
	return 16 + 36*r + 6*g + b, true
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
