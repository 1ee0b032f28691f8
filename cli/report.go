package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/xmaslights/ledmap/reconstruct"
	"github.com/xmaslights/ledmap/utils"
)

// ReportAction prints a summary of a reconstruction report and optionally converts it to JSON.
func ReportAction(c *cli.Context) error {
	return run(c, func(s *session) error {
		path := c.String(reportFlagInput)
		if path == "" {
			path = s.path(s.cfg.Output.Report)
		}
		rep, err := reconstruct.LoadReport(path)
		if err != nil {
			return err
		}
		printReport(s, rep)
		if out := c.String(reportFlagJSON); out != "" {
			data, err := json.MarshalIndent(positionsJSON(rep), "", "  ")
			if err != nil {
				return err
			}
			if err := utils.WriteFileAtomic(out, append(data, '\n'), 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", out)
			}
			infof(s.out, "saved positions to %s", out)
		}
		return nil
	})
}

type positionJSON struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// positionsJSON lists the positions in ascending id order, the shape animation tools load.
func positionsJSON(rep *reconstruct.Report) []positionJSON {
	ids := lo.Keys(rep.Positions)
	slices.Sort(ids)
	return lo.Map(ids, func(id, _ int) positionJSON {
		p := rep.Positions[id]
		return positionJSON{ID: id, X: p.X, Y: p.Y, Z: p.Z}
	})
}

func printReport(s *session, rep *reconstruct.Report) {
	printf(s.out, "%d lights positioned, %d missing", len(rep.Positions), len(rep.Missing))
	if len(rep.Positions) == 0 {
		return
	}
	points := lo.Values(rep.Positions)
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Axis", "Min (mm)", "Median (mm)", "Max (mm)"})
	for _, axis := range []struct {
		name string
		get  func(r3.Vector) float64
	}{
		{"x", func(v r3.Vector) float64 { return v.X }},
		{"y", func(v r3.Vector) float64 { return v.Y }},
		{"z", func(v r3.Vector) float64 { return v.Z }},
	} {
		data := stats.Float64Data(lo.Map(points, func(p r3.Vector, _ int) float64 { return axis.get(p) }))
		minV, _ := data.Min()
		maxV, _ := data.Max()
		med, _ := data.Median()
		t.AppendRow(table.Row{axis.name, fmt.Sprintf("%.1f", minV), fmt.Sprintf("%.1f", med), fmt.Sprintf("%.1f", maxV)})
	}
	printf(s.out, "%s", t.Render())
	for _, reason := range []reconstruct.MissingReason{reconstruct.ReasonNotDetected, reconstruct.ReasonDepthImplausible} {
		ids := lo.Filter(lo.Keys(rep.Missing), func(id, _ int) bool { return rep.Missing[id] == reason })
		if len(ids) > 0 {
			slices.Sort(ids)
			printf(s.out, "missing (%s): %v", reason, ids)
		}
	}
}
