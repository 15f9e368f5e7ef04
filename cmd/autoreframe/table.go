package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/keagan/autoreframe/internal/clips"
	"github.com/keagan/autoreframe/internal/pipeline"
	"github.com/keagan/autoreframe/pkg/util"
)

var clipColumns = []struct {
	title string
	align text.Align
}{
	{"#", text.AlignRight},
	{"ID", text.AlignLeft},
	{"Start", text.AlignRight},
	{"End", text.AlignRight},
	{"Length", text.AlignRight},
	{"Mode", text.AlignLeft},
	{"Crop", text.AlignRight},
}

// renderClipTable lists the project's clips in timeline order with a
// footer totalling clip count and covered time.
func renderClipTable(project *pipeline.EditProject) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(clipColumns))
	configs := make([]table.ColumnConfig, len(clipColumns))
	for i, col := range clipColumns {
		header[i] = col.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: col.align, AlignFooter: col.align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	var covered time.Duration
	for i, c := range project.Clips {
		tw.AppendRow(clipRow(i, c))
		covered += c.Duration()
	}
	tw.AppendFooter(table.Row{"", "", "", "", seconds1(covered), fmt.Sprintf("%d clips", len(project.Clips)), ""})

	return tw.Render()
}

func clipRow(i int, c clips.VideoClip) table.Row {
	mode, crop := "crop", fmt.Sprintf("%.0f,%.0f", c.CropPosition.X, c.CropPosition.Y)
	switch {
	case c.UseFullFrame:
		mode, crop = "letterbox", "-"
	case c.CropScale > 1:
		mode = fmt.Sprintf("crop x%.2g", c.CropScale)
	}
	return table.Row{
		i + 1,
		shortID(c.ID),
		util.FormatDuration(c.Start),
		util.FormatDuration(c.End),
		seconds1(c.Duration()),
		mode,
		crop,
	}
}

func seconds1(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
