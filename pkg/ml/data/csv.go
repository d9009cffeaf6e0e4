/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package data reads feature matrices from files into batch views, and writes predictions back.
//
// Supported formats:
//
//   - CSV (dense): one row per line, one feature per column. Parsed with gota dataframes.
//   - LIBSVM (sparse): "<label> <col>:<value> <col>:<value> ..." per line.
package data

import (
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gomlx/treerun/pkg/core/batch"
	"github.com/pkg/errors"
)

// DefaultMissingTokens are the CSV fields read as missing values, in addition to empty fields.
var DefaultMissingTokens = []string{"NA", "NaN", "nan", "?"}

// CSVOptions configure ReadCSV.
type CSVOptions struct {
	// HasHeader indicates the first line holds column names.
	HasHeader bool

	// MissingTokens are the fields read as missing (NaN). If nil, DefaultMissingTokens is used.
	MissingTokens []string

	// MissingValue is the sentinel of the returned batch. Use NaN (the default, if MissingValueSet is false)
	// to have missing tokens be missing features.
	MissingValue    float32
	MissingValueSet bool
}

// ReadCSV reads a dense batch from r. All columns are parsed as floats: empty fields and
// opts.MissingTokens are missing, and any other field that is not a number is an error
// wrapping batch.ErrInvalidInput.
func ReadCSV(r io.Reader, opts CSVOptions) (*batch.Dense, []string, error) {
	missingTokens := opts.MissingTokens
	if missingTokens == nil {
		missingTokens = DefaultMissingTokens
	}
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(opts.HasHeader),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(missingTokens))
	if df.Err != nil {
		return nil, nil, errors.Wrapf(df.Err, "failed to parse CSV")
	}
	return DenseFromDataFrame(df, opts)
}

// ReadCSVFile reads a dense batch from the CSV file at path, see ReadCSV.
func ReadCSVFile(path string, opts CSVOptions) (*batch.Dense, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	b, names, err := ReadCSV(f, opts)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "reading %q", path)
	}
	return b, names, nil
}

// DenseFromDataFrame converts every column of df to float32 features of a row-major dense batch.
// Float columns are taken as is. String columns are parsed, with NA and empty elements read as NaN.
// It returns the batch and the column names.
func DenseFromDataFrame(df dataframe.DataFrame, opts CSVOptions) (*batch.Dense, []string, error) {
	numRow, numCol := df.Nrow(), df.Ncol()
	names := df.Names()
	values := make([]float32, numRow*numCol)
	for col, name := range names {
		column := df.Col(name)
		switch column.Type() {
		case series.Float:
			for row, v := range column.Float() {
				values[row*numCol+col] = float32(v)
			}
		case series.String:
			for row := range numRow {
				v, err := parseFeature(column.Elem(row))
				if err != nil {
					return nil, nil, errors.WithMessagef(err, "row %d, column %q", row, name)
				}
				values[row*numCol+col] = v
			}
		default:
			return nil, nil, errors.Errorf("column %q has type %s, only float and string columns are supported",
				name, column.Type())
		}
	}
	missingValue := float32(math.NaN())
	if opts.MissingValueSet {
		missingValue = opts.MissingValue
	}
	b, err := batch.NewDense(values, uint64(numRow), uint64(numCol), missingValue)
	if err != nil {
		return nil, nil, err
	}
	return b, names, nil
}

func parseFeature(e series.Element) (float32, error) {
	if e.IsNA() {
		return float32(math.NaN()), nil
	}
	field := strings.TrimSpace(e.String())
	if field == "" {
		return float32(math.NaN()), nil
	}
	v, err := strconv.ParseFloat(field, 32)
	if err != nil {
		return 0, errors.Wrapf(batch.ErrInvalidInput, "%q is not a number", field)
	}
	return float32(v), nil
}

// ParseMissingValue parses a missing value sentinel given as text: "" and "nan" (any case) are NaN.
func ParseMissingValue(s string) (float32, error) {
	if s == "" {
		return float32(math.NaN()), nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid missing value %q", s)
	}
	return float32(v), nil
}
