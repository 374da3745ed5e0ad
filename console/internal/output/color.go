package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ANSI color codes
const (
	reset = "\033[0m"

	FgRed    = 31
	FgGreen  = 32
	FgYellow = 33
	FgCyan   = 36
	FgWhite  = 37

	Bold = 1
)

// Color is a set of ANSI attributes. A disabled Color prints plain text.
type Color struct {
	params  []int
	enabled bool
}

func NewColor(enabled bool, attrs ...int) *Color {
	return &Color{params: attrs, enabled: enabled}
}

func (c *Color) format() string {
	if !c.enabled || len(c.params) == 0 {
		return ""
	}
	parts := make([]string, len(c.params))
	for i, p := range c.params {
		parts[i] = strconv.Itoa(p)
	}
	return "\033[" + strings.Join(parts, ";") + "m"
}

func (c *Color) Fprintf(w io.Writer, format string, a ...interface{}) {
	if !c.enabled {
		fmt.Fprintf(w, format, a...)
		return
	}
	fmt.Fprintf(w, c.format()+format+reset, a...)
}

func (c *Color) Sprint(a ...interface{}) string {
	if !c.enabled {
		return fmt.Sprint(a...)
	}
	return c.format() + fmt.Sprint(a...) + reset
}
