package market

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

func WriteCSV(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Date.Format("2006-01-02"),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
