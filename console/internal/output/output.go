// Package output renders alarmctl results as colored messages, tables, JSON or
// YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formats accepted by --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Printer writes to Out and Err in one format.
type Printer struct {
	Out    io.Writer
	Err    io.Writer
	Format string

	success *Color
	failure *Color
	info    *Color
	warn    *Color
	header  *Color
}

// New returns a Printer. Colors are used only for table output to a terminal.
func New(out, errOut io.Writer, format string) (*Printer, error) {
	switch format {
	case "":
		format = FormatTable
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q: use table, json or yaml", format)
	}

	colored := format == FormatTable && isTerminal(out)
	return &Printer{
		Out:     out,
		Err:     errOut,
		Format:  format,
		success: NewColor(colored, FgGreen, Bold),
		failure: NewColor(colored, FgRed, Bold),
		info:    NewColor(colored, FgCyan),
		warn:    NewColor(colored, FgYellow),
		header:  NewColor(colored, FgWhite, Bold),
	}, nil
}

// Stdout is a Printer on the process streams.
func Stdout(format string) (*Printer, error) {
	return New(os.Stdout, os.Stderr, format)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Structured reports whether results should be encoded rather than rendered.
func (p *Printer) Structured() bool {
	return p.Format == FormatJSON || p.Format == FormatYAML
}

func (p *Printer) Success(format string, a ...interface{}) {
	p.success.Fprintf(p.Out, "✓ "+format+"\n", a...)
}

func (p *Printer) Error(format string, a ...interface{}) {
	p.failure.Fprintf(p.Err, "✗ "+format+"\n", a...)
}

func (p *Printer) Info(format string, a ...interface{}) {
	p.info.Fprintf(p.Out, format+"\n", a...)
}

func (p *Printer) Warn(format string, a ...interface{}) {
	p.warn.Fprintf(p.Out, "⚠ "+format+"\n", a...)
}

// Encode writes v as JSON or YAML, depending on the format.
func (p *Printer) Encode(v interface{}) error {
	if p.Format == FormatYAML {
		return p.YAML(v)
	}
	return p.JSON(v)
}

func (p *Printer) JSON(v interface{}) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML goes through JSON first so field names follow the json tags.
func (p *Printer) YAML(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(p.Out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers []string) *Table {
	return &Table{
		headers: headers,
		rows:    [][]string{},
	}
}

func (t *Table) AddRow(row []string) {
	t.rows = append(t.rows, row)
}

func (p *Printer) Render(t *Table) {
	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, header := range t.headers {
		p.header.Fprintf(p.Out, "%-*s  ", widths[i], header)
	}
	fmt.Fprintln(p.Out)

	for i := range t.headers {
		fmt.Fprint(p.Out, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(p.Out)

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(p.Out, "%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(p.Out)
	}
}
