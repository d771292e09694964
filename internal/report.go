package internal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderSummary formats a batch summary as a table, followed by the error
// report when files failed.
func RenderSummary(s *Summary) string {
	tw := newTable("Result", "Files")
	tw.AppendRow(table.Row{"Copied", s.Copied})
	tw.AppendRow(table.Row{"Skipped (duplicate)", s.SkippedDuplicate})
	tw.AppendRow(table.Row{"Skipped (unsupported)", s.SkippedUnsupported})
	tw.AppendRow(table.Row{"Failed", s.Failed})
	tw.AppendFooter(table.Row{"Total", s.Total})

	var b strings.Builder
	b.WriteString(tw.Render())
	b.WriteString(fmt.Sprintf("\nCopied %s in %s\n", humanize.Bytes(uint64(s.BytesCopied)), s.Duration.Round(time.Millisecond)))
	if s.Errors != nil && s.Errors.Total > 0 {
		b.WriteString(s.Errors.GenerateReport())
	}
	return b.String()
}

// RenderScan formats a scan report.
func RenderScan(r *ScanReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s: %s (%d media), %s, scanned in %s\n\n",
		r.FolderPath, plural(r.TotalFiles, "file"), r.Media(), humanize.Bytes(uint64(r.TotalSize)), r.Duration.Round(time.Millisecond)))

	kinds := newTable("Kind", "Files")
	for _, k := range []Kind{KindImage, KindVideo, KindUnsupported} {
		kinds.AppendRow(table.Row{k.String(), r.ByKind[k]})
	}
	if r.Failed > 0 {
		kinds.AppendRow(table.Row{"unreadable", r.Failed})
	}
	b.WriteString(kinds.Render())
	b.WriteString("\n\n")

	if len(r.ByExtension) > 0 {
		exts := newTable("Extension", "Files")
		for _, e := range sortedKeys(r.ByExtension) {
			exts.AppendRow(table.Row{e, r.ByExtension[e]})
		}
		b.WriteString(exts.Render())
		b.WriteString("\n\n")

		sources := newTable("Date source", "Files")
		for _, s := range sortedKeys(r.BySource) {
			sources.AppendRow(table.Row{s, r.BySource[s]})
		}
		b.WriteString(sources.Render())
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("Capture dates: %s to %s\n",
			r.Earliest.Format(time.DateOnly), r.Latest.Format(time.DateOnly)))
	}
	return b.String()
}

func newTable(headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, len(headers))
	for i, h := range headers {
		header[i] = h
		align := text.AlignLeft
		if i > 0 {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft, AlignFooter: align}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)
	return tw
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
