package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output печатает результаты команд: человекочитаемой таблицей
// или JSON'ом для пайплайнов (--json). Данные идут в stdout,
// служебные сообщения — в stderr, чтобы не ломать `| jq`.
type Output struct {
	jsonMode bool
	out      io.Writer
	msg      io.Writer
}

// NewOutput создаёт Output.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		out:      os.Stdout,
		msg:      os.Stderr,
	}
}

// Print выводит данные в формате, выбранном при создании.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table печатает выровненную таблицу с подчёркнутыми заголовками.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	writeRow(tw, headers)

	underline := make([]string, len(headers))
	for i, h := range headers {
		underline[i] = strings.Repeat("-", len(h))
	}
	writeRow(tw, underline)

	for _, row := range rows {
		writeRow(tw, row)
	}
}

func writeRow(w io.Writer, cells []string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

// JSON печатает данные с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success печатает сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.msg, msg)
}

// Error печатает сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.msg, "Error: "+msg)
}
