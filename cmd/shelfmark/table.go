package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableColumn pairs a header with its body alignment. Headers stay
// left-aligned regardless of the column body.
type tableColumn struct {
	header string
	align  columnAlignment
}

// Column presets for the listing commands.
var (
	bookmarkColumns = []tableColumn{
		{header: "ID", align: alignRight},
		{header: "Status"},
		{header: "Title"},
		{header: "URL"},
		{header: "Updated"},
	}
	entityColumns = []tableColumn{
		{header: "ID", align: alignRight},
		{header: "Type"},
		{header: "Name"},
		{header: "Bookmarks", align: alignRight},
	}
	entityLinkColumns = []tableColumn{
		{header: "Entity"},
		{header: "Type"},
		{header: "Confidence", align: alignRight},
		{header: "Source"},
	}
)

func renderTable(columns []tableColumn, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.header
		align := text.AlignLeft
		if col.align == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}
