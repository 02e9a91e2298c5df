package explorer

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/okian/upsetlens/internal/domain/upset"
)

const (
	memberMark  = "●"
	absentMark  = "·"
	previewSize = 8
)

// RenderGroups prints the group legend: one column index per label.
func RenderGroups(labels []string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Groups")
	tw.AppendHeader(table.Row{"#", "Label"})
	for i, l := range labels {
		tw.AppendRow(table.Row{i + 1, l})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	return tw.Render()
}

// RenderRecords prints the UpSet matrix: a membership dot per group, the
// intersection size and a preview of its album ids.
func RenderRecords(labels []string, records []upset.Record) string {
	columns := len(labels) + 2
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Intersections")

	header := make(table.Row, 0, columns)
	for i := range labels {
		header = append(header, strconv.Itoa(i+1))
	}
	header = append(header, "Size", "Albums")
	tw.AppendHeader(header)

	for _, r := range records {
		row := make(table.Row, 0, columns)
		for _, bit := range r.Sets {
			if bit == 1 {
				row = append(row, memberMark)
			} else {
				row = append(row, absentMark)
			}
		}
		row = append(row, r.IntersectionSize, preview(r))
		tw.AppendRow(row)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range labels {
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignCenter, AlignHeader: text.AlignCenter})
	}
	configs = append(configs, table.ColumnConfig{Number: len(labels) + 1, Align: text.AlignRight})
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func preview(r upset.Record) string {
	n := min(len(r.AlbumIDs), previewSize)
	parts := make([]string, 0, n+1)
	for _, id := range r.AlbumIDs[:n] {
		parts = append(parts, strconv.Itoa(int(id)))
	}
	if len(r.AlbumIDs) > n {
		parts = append(parts, "…")
	}
	return strings.Join(parts, " ")
}
