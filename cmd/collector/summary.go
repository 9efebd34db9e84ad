package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"lol-match-crawler/internal/collector"
	"lol-match-crawler/internal/riot"
	"lol-match-crawler/internal/sample"
)

// printSummary renders the end-of-run report.
func printSummary(w io.Writer, res collector.Result, output string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Collection " + res.State.String())

	t.AppendRow(table.Row{"Samples", fmt.Sprintf("%s / %s", humanize.Comma(int64(res.Emitted)), humanize.Comma(int64(res.Target)))})
	t.AppendRow(table.Row{"Players expanded", humanize.Comma(int64(res.PlayersExpanded))})
	t.AppendRow(table.Row{"Players seen", humanize.Comma(int64(res.PlayersSeen))})
	t.AppendRow(table.Row{"Matches seen", humanize.Comma(int64(res.MatchesSeen))})
	t.AppendRow(table.Row{"Rejected", rejectedSummary(res)})
	t.AppendRow(table.Row{"Elapsed", collector.FormatDuration(res.Elapsed)})
	t.AppendRow(table.Row{"Throughput", fmt.Sprintf("%.1f samples/min", res.Throughput())})
	if res.Err != nil {
		t.AppendRow(table.Row{"Error", fmt.Sprintf("%s: %v", riot.Kind(res.Err), res.Err)})
	}
	if output != "" {
		t.AppendRow(table.Row{"Output", output})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func rejectedSummary(res collector.Result) string {
	if res.Rejected == 0 {
		return "0"
	}
	reasons := make([]sample.Reason, 0, len(res.RejectedBy))
	for r := range res.RejectedBy {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	out := humanize.Comma(int64(res.Rejected)) + " ("
	for i, r := range reasons {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %d", r, res.RejectedBy[r])
	}
	return out + ")"
}
