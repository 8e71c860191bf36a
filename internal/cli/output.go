package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output — вывод результатов CLI.
//
// Данные (таблицы, JSON) идут в stdout, сообщения Success/Error — в
// stderr, чтобы `restavrator batch list --json | jq .` получал на вход
// чистый JSON.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output. В режиме jsonMode данные печатаются как
// JSON вместо таблиц.
func NewOutput(jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: os.Stdout, errW: os.Stderr}
}

// Print выводит данные в активном режиме: JSON или таблицу.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table печатает таблицу: строка заголовков, строка разделителей по
// ширине заголовка, данные. Пустой список помечается отдельной строкой,
// чтобы не путать его с обрезанным выводом.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	sep := make([]string, len(headers))
	for i := range headers {
		sep[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	if len(rows) == 0 {
		fmt.Fprintln(tw, "(none)")
		return
	}
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
}

// JSON печатает значение как JSON с отступами.
func (o *Output) JSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		o.Error(fmt.Sprintf("encode output: %v", err))
		return
	}
	fmt.Fprintln(o.w, string(data))
}

// Success печатает сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error печатает сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
