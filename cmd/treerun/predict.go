package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gomlx/treerun/pkg/core/batch"
	"github.com/gomlx/treerun/pkg/ml/data"
	"github.com/gomlx/treerun/pkg/predictor"
	"github.com/gomlx/treerun/pkg/support/fsutil"
	"github.com/gomlx/treerun/ui/commandline"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"k8s.io/klog/v2"
)

// PredictionsSuffix is appended to the input file name to name the predictions file.
const PredictionsSuffix = ".pred.csv"

// errSkipped marks files that were read but not predicted, because another file failed to read.
var errSkipped = errors.New("skipped")

// config of a prediction run, parsed from the flags.
type config struct {
	format        string
	csv           data.CSVOptions
	libsvm        data.LibSVMOptions
	opts          predictor.Options
	chunk         int
	parallelFiles int
	outDir        string
	showProgress  bool
}

func configFromFlags() (*config, error) {
	cfg := &config{
		format:        strings.ToLower(*flagFormat),
		csv:           data.CSVOptions{HasHeader: *flagHeader},
		libsvm:        data.LibSVMOptions{NumCol: *flagNumCol, OneBased: *flagOneBased},
		opts:          predictor.Options{NumThreads: *flagNumThreads, Verbose: *flagVerbose, PredMargin: *flagMargin},
		chunk:         *flagChunk,
		parallelFiles: *flagParallelFiles,
		outDir:        *flagOutDir,
		showProgress:  term.IsTerminal(int(os.Stderr.Fd())),
	}
	if cfg.format != "csv" && cfg.format != "libsvm" {
		return nil, errors.Errorf("invalid -format=%q, valid values are \"csv\" and \"libsvm\"", *flagFormat)
	}
	if *flagMissing != "" {
		missing, err := data.ParseMissingValue(*flagMissing)
		if err != nil {
			return nil, err
		}
		cfg.csv.MissingValue, cfg.csv.MissingValueSet = missing, true
	}
	if cfg.chunk < 0 {
		return nil, errors.Errorf("invalid -chunk=%d, it must be >= 0", cfg.chunk)
	}
	if cfg.outDir != "" {
		var err error
		if cfg.outDir, err = fsutil.EnsureDir(cfg.outDir); err != nil {
			return nil, err
		}
	}
	if cfg.parallelFiles < 1 {
		return nil, errors.Errorf("invalid -parallel_files=%d, it must be >= 1", cfg.parallelFiles)
	}
	return cfg, nil
}

// fileResult reports the prediction of one input file.
type fileResult struct {
	path, outPath  string
	kind           batch.Kind
	numRow, numCol uint64
	width          uint64
	readTime       time.Duration
	predictTime    time.Duration
	err            error
}

// predictFiles reads every file, predicts it with p and writes the predictions.
// It returns one result per file (in the order given), and the first error.
func predictFiles(p *predictor.Predictor, cfg *config, paths []string) ([]*fileResult, error) {
	results := make([]*fileResult, len(paths))
	batches := make([]batch.Batch, len(paths))

	// Read all files first, so the total number of rows is known for the progress bar.
	var totalRows atomic.Int64
	var g errgroup.Group
	g.SetLimit(cfg.parallelFiles)
	for ii, path := range paths {
		results[ii] = &fileResult{path: path}
		g.Go(func() error {
			r := results[ii]
			start := time.Now()
			b, err := readBatch(cfg, path)
			r.readTime = time.Since(start)
			if err != nil {
				r.err = err
				return err
			}
			batches[ii] = b
			r.kind, r.numRow, r.numCol = b.Kind(), b.NumRow(), b.NumCol()
			totalRows.Add(int64(b.NumRow()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r.err == nil {
				r.err = errSkipped
			}
		}
		return results, err
	}

	var progress *commandline.RowsProgress
	if cfg.showProgress {
		progress = commandline.NewRowsProgress(os.Stderr, "Predicting", totalRows.Load())
	}
	g = errgroup.Group{}
	g.SetLimit(cfg.parallelFiles)
	for ii, b := range batches {
		g.Go(func() error {
			r := results[ii]
			r.err = predictFile(p, cfg, r, b, progress)
			return r.err
		})
	}
	err := g.Wait()
	progress.Finish()
	return results, err
}

func readBatch(cfg *config, path string) (batch.Batch, error) {
	switch cfg.format {
	case "libsvm":
		b, _, err := data.ReadLibSVMFile(path, cfg.libsvm)
		return b, err
	default:
		b, _, err := data.ReadCSVFile(path, cfg.csv)
		return b, err
	}
}

// predictFile predicts b in chunks of cfg.chunk rows, and writes the predictions to r.outPath.
func predictFile(p *predictor.Predictor, cfg *config, r *fileResult, b batch.Batch, progress *commandline.RowsProgress) error {
	start := time.Now()
	numRow := b.NumRow()
	chunk := uint64(cfg.chunk)
	if chunk == 0 {
		chunk = max(numRow, 1)
	}
	var preds []float32
	for begin := uint64(0); begin < numRow; begin += chunk {
		end := min(begin+chunk, numRow)
		chunkPreds, err := p.Predict(subBatch(b, begin, end), cfg.opts)
		if err != nil {
			return errors.WithMessagef(err, "predicting rows %d to %d of %q", begin, end, r.path)
		}
		preds = append(preds, chunkPreds...)
		progress.Add(int64(end - begin))
	}
	r.predictTime = time.Since(start)
	if numRow > 0 {
		r.width = uint64(len(preds)) / numRow
		if r.width*numRow != uint64(len(preds)) {
			return errors.Errorf("chunks of %q produced a different number of predictions per row", r.path)
		}
	}

	r.outPath = outputPath(cfg.outDir, r.path)
	if err := data.WritePredictionsFile(r.outPath, preds, int(numRow)); err != nil {
		return err
	}
	klog.V(1).Infof("Wrote %d predictions of %q to %q", len(preds), r.path, r.outPath)
	return nil
}

// subBatch returns the view of rows [begin, end) of b.
func subBatch(b batch.Batch, begin, end uint64) batch.Batch {
	if begin == 0 && end == b.NumRow() {
		return b
	}
	switch v := b.(type) {
	case *batch.Dense:
		return v.Rows(begin, end)
	case *batch.CSR:
		return v.Rows(begin, end)
	}
	klog.Fatalf("batch type %T doesn't support sub-views", b)
	return nil
}

func outputPath(outDir, inputPath string) string {
	if outDir == "" {
		return inputPath + PredictionsSuffix
	}
	return filepath.Join(outDir, filepath.Base(inputPath)+PredictionsSuffix)
}
