package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

func newTable(headers ...interface{}) *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = 60
	t.Wrap = true
	t.AddRow(headers...)
	return t
}

func printTable(w io.Writer, t *uitable.Table, empty string) {
	if len(t.Rows) <= 1 {
		faint.Fprintln(w, empty)
		return
	}
	fmt.Fprintln(w, t)
}

// status colours a status word: approved/completed green, denied/failed red,
// pending or cancelled yellow.
func status(s string) string {
	switch strings.ToLower(s) {
	case "approved", "completed", "done", "ok":
		return green.Sprint(s)
	case "denied", "failed", "error":
		return red.Sprint(s)
	default:
		return yellow.Sprint(s)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
