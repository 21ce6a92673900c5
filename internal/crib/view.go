package crib

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/sensor"
)

// ReadSensors reads the sensors of the document at path. No streams are
// attached; the result is for inspection and offline evaluation.
func ReadSensors(path string, sampling config.SamplingConfig) (*sensor.Collection, error) {
	doc, err := document.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sec, ok := doc.Lookup(sensorsSection)
	if !ok {
		return sensor.NewCollection(), nil
	}
	return sensor.UnpackCollection(sec, sampling)
}

// WriteTable writes one row per sensor with its calibration state on today
func WriteTable(w io.Writer, sensors *sensor.Collection, today time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tADDRESS\tLOCATION\tDUE\tSTATUS\tEQUATION")
	for _, s := range sensors.All() {
		status := "invalid"
		if s.IsCalibrated(today) {
			status = "ok"
		}
		eq := "none"
		if s.Calibration.Equation != nil {
			eq = s.Calibration.Equation.Synopsis()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Type, s.Address, s.Location, s.Calibration.DueString(), status, eq)
	}
	return tw.Flush()
}
