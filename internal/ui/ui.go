// Package ui renders query results and status lines for the CLI.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/gandaldf/quacksql"
)

// Output formats accepted by PrintFrame.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatText  = "text"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	mutedColor   = color.New(color.FgHiBlack)
)

// PrintFrame writes f to w in the given format.
func PrintFrame(w io.Writer, f *quacksql.Frame, format string) error {
	switch format {
	case FormatTable, "":
		return printTable(w, f)
	case FormatJSON:
		return printJSON(w, f)
	case FormatText:
		_, err := fmt.Fprintln(w, f.Rows())
		return err
	default:
		return fmt.Errorf("unknown format %q (want %s, %s or %s)", format, FormatTable, FormatJSON, FormatText)
	}
}

func printTable(w io.Writer, f *quacksql.Frame) error {
	data := pterm.TableData{f.Names()}
	for _, row := range f.Rows() {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		data = append(data, cells)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render(); err != nil {
		return err
	}
	mutedColor.Fprintf(w, "(%d rows)\n", f.Len())
	return nil
}

func printJSON(w io.Writer, f *quacksql.Frame) error {
	names := f.Names()
	out := make([]map[string]any, f.Len())
	for i, row := range f.Rows() {
		obj := make(map[string]any, len(names))
		for c, name := range names {
			v := row[c]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			obj[name] = v
		}
		out[i] = obj
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// formatCell renders a single value for table output.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// PrintList writes one bulleted line per item.
func PrintList(w io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintf(w, "  • %s\n", item)
	}
}

// Success prints a green status line.
func Success(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, "✔ "+format+"\n", args...)
}

// Error prints a red error line.
func Error(w io.Writer, err error) {
	errorColor.Fprintf(w, "✖ %v\n", err)
}
