package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Progenics2025/LIMS-sub003/internal/recycle"
)

const maxNameWidth = 40

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderEntries(w io.Writer, entries []recycle.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("Recycle bin is empty"))
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("UID"),
		text.FgHiCyan.Sprint("TYPE"),
		text.FgHiCyan.Sprint("ENTITY"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("DELETED AT"),
		text.FgHiCyan.Sprint("BY"),
	})

	for _, entry := range entries {
		uid := entry.UID
		if entry.IsProvisional() {
			uid = text.FgYellow.Sprint(uid)
		}
		t.AppendRow(table.Row{
			uid,
			entry.EntityType,
			entry.EntityID,
			truncate(entry.Name, maxNameWidth),
			entry.DeletedAt.Local().Format(time.DateTime),
			entry.CreatedBy,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "TOTAL", len(entries)})
	t.Render()
}

func renderOutcome(w io.Writer, outcome recycle.Outcome) {
	switch {
	case !outcome.FellBack():
		fmt.Fprintf(w, "%s %s\n", text.FgHiBlue.Sprint("Source:"), text.FgGreen.Sprint("remote"))
	case outcome.RemoteErr != nil:
		fmt.Fprintf(w, "%s %s (%v)\n", text.FgHiBlue.Sprint("Source:"), text.FgYellow.Sprint("local cache"), outcome.RemoteErr)
	default:
		fmt.Fprintf(w, "%s %s\n", text.FgHiBlue.Sprint("Source:"), text.FgYellow.Sprint("local cache"))
	}

	if outcome.Failed > 0 {
		fmt.Fprintf(w, "%s %d entries could not be processed remotely\n", text.FgRed.Sprint("Failed:"), outcome.Failed)
	}
	if outcome.LocalErr != nil {
		fmt.Fprintf(w, "%s %v\n", text.FgRed.Sprint("Cache write failed:"), outcome.LocalErr)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
