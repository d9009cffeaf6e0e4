package data

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/treerun/pkg/core/batch"
	"github.com/pkg/errors"
)

// LibSVMOptions configure ReadLibSVM.
type LibSVMOptions struct {
	// NumCol is the number of features. If 0 it is inferred as the largest column index + 1.
	NumCol uint64

	// OneBased indicates column indices start at 1 in the file. They are shifted to 0-based.
	OneBased bool
}

// ReadLibSVM reads a sparse batch from r, in LIBSVM format:
//
//	<label> [qid:<n>] <col>:<value> <col>:<value> ... [# comment]
//
// Blank lines and lines starting with '#' are skipped. Within a row columns may appear in any order.
// It returns the batch and the labels of each row.
func ReadLibSVM(r io.Reader, opts LibSVMOptions) (*batch.CSR, []float32, error) {
	var (
		data   []float32
		colInd []uint32
		labels []float32
		maxCol int64 = -1
	)
	rowPtr := []uint64{0}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		label, err := strconv.ParseFloat(fields[0], 32)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d: invalid label %q", lineNum, fields[0])
		}
		labels = append(labels, float32(label))
		for _, field := range fields[1:] {
			key, value, found := strings.Cut(field, ":")
			if !found {
				return nil, nil, errors.Errorf("line %d: invalid feature %q, expected <col>:<value>", lineNum, field)
			}
			if key == "qid" {
				continue
			}
			col, err := strconv.ParseUint(key, 10, 32)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "line %d: invalid column index %q", lineNum, key)
			}
			if opts.OneBased {
				if col == 0 {
					return nil, nil, errors.Errorf("line %d: column index 0 with one-based indices", lineNum)
				}
				col--
			}
			v, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "line %d: invalid value %q for column %d", lineNum, value, col)
			}
			maxCol = max(maxCol, int64(col))
			colInd = append(colInd, uint32(col))
			data = append(data, float32(v))
		}
		rowPtr = append(rowPtr, uint64(len(data)))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read LIBSVM input after line %d", lineNum)
	}
	numCol := opts.NumCol
	if numCol == 0 {
		numCol = uint64(maxCol + 1)
	}
	b, err := batch.NewCSR(data, colInd, rowPtr, numCol)
	if err != nil {
		return nil, nil, err
	}
	return b, labels, nil
}

// ReadLibSVMFile reads a sparse batch from the LIBSVM file at path, see ReadLibSVM.
func ReadLibSVMFile(path string, opts LibSVMOptions) (*batch.CSR, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	b, labels, err := ReadLibSVM(f, opts)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "reading %q", path)
	}
	return b, labels, nil
}
