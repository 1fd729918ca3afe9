package writer

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/perfusion-lab/hemoflow/pkg/flow"
)

// TipCSVWriter appends one row per windkessel tip and output time to a
// per-rank CSV file.
type TipCSVWriter struct {
	f *os.File
	w *csv.Writer
}

var tipHeader = []string{"t", "vertex_id", "p_c", "avg_flow", "r2", "radius", "x", "y", "z"}

// NewTipCSVWriter creates the per-rank tip file and writes the header.
func NewTipCSVWriter(dir, runID string, rank int) (*TipCSVWriter, error) {
	f, err := os.Create(rankFile(dir, runID, "vessel_tips", rank, "csv"))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(tipHeader); err != nil {
		f.Close()
		return nil, err
	}
	return &TipCSVWriter{f: f, w: w}, nil
}

// Append writes one row per tip for the output time t.
func (c *TipCSVWriter) Append(t float64, tips []flow.VesselTip) error {
	for _, tip := range tips {
		row := []string{
			formatFloat(t),
			strconv.Itoa(int(tip.Vertex)),
			formatFloat(tip.PC),
			formatFloat(tip.AvgFlow),
			formatFloat(tip.R2),
			formatFloat(tip.Radius),
			formatFloat(tip.Point.X),
			formatFloat(tip.Point.Y),
			formatFloat(tip.Point.Z),
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the file.
func (c *TipCSVWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
