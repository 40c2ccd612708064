// Package export encodes the buffered sample history into the tabular
// form the download endpoint serves. The engine only exposes its history;
// the byte encoding here is the entire export concern.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// Header is the column layout of the exported table.
var Header = []string{"timestamp", "voltage", "temperature", "humidity", "panel_angle"}

// WriteCSV writes the samples as CSV, one row per sample in the given
// order, preceded by the header row. Timestamps are RFC3339 UTC.
func WriteCSV(w io.Writer, samples []telemetry.Sample) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, s := range samples {
		row := []string{
			s.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(s.Voltage),
			formatFloat(s.Temperature),
			formatFloat(s.Humidity),
			formatFloat(s.PanelAngle),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
