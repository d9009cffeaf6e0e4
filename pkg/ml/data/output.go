package data

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// PredictionColumnName returns the name of the output column of the given group.
func PredictionColumnName(group int) string {
	return fmt.Sprintf("pred_%d", group)
}

// PredictionsDataFrame arranges the flat predictions of numRow rows (each with len(preds)/numRow values)
// into a dataframe with one column per output group, named with PredictionColumnName.
//
// Values are formatted with the shortest representation that round-trips to the same float32.
func PredictionsDataFrame(preds []float32, numRow int) (dataframe.DataFrame, error) {
	if numRow <= 0 {
		if len(preds) != 0 {
			return dataframe.DataFrame{}, errors.Errorf("%d predictions for %d rows", len(preds), numRow)
		}
		return dataframe.New(series.New([]string{}, series.String, PredictionColumnName(0))), nil
	}
	if len(preds)%numRow != 0 {
		return dataframe.DataFrame{}, errors.Errorf("%d predictions is not a multiple of the number of rows %d", len(preds), numRow)
	}
	width := len(preds) / numRow
	columns := make([]series.Series, width)
	for group := range width {
		values := make([]string, numRow)
		for row := range numRow {
			values[row] = strconv.FormatFloat(float64(preds[row*width+group]), 'g', -1, 32)
		}
		columns[group] = series.New(values, series.String, PredictionColumnName(group))
	}
	return dataframe.New(columns...), nil
}

// WritePredictions writes the predictions as CSV, with a header line, to w. See PredictionsDataFrame.
func WritePredictions(w io.Writer, preds []float32, numRow int) error {
	df, err := PredictionsDataFrame(preds, numRow)
	if err != nil {
		return err
	}
	if err = df.WriteCSV(w); err != nil {
		return errors.Wrapf(err, "failed to write predictions")
	}
	return nil
}

// WritePredictionsFile writes the predictions to a CSV file at path, see WritePredictions.
func WritePredictionsFile(path string, preds []float32, numRow int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "failed to close %q", path)
		}
	}()
	return WritePredictions(f, preds, numRow)
}
