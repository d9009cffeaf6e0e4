// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// treerun evaluates a compiled tree ensemble (a shared library exporting the computation unit
// ABI) over CSV or LIBSVM files, or serves it over HTTP.
//
// Examples:
//
//	treerun -model=./model.so -info
//	treerun -model=./model.so -format=csv -header -out_dir=/tmp/preds data1.csv data2.csv
//	treerun -model=./model.so -serve=:8080
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gomlx/treerun/pkg/predictor"
	"github.com/gomlx/treerun/pkg/server"
	"github.com/gomlx/treerun/pkg/support/fsutil"
	_ "github.com/gomlx/treerun/pkg/unit/dynamic"
	_ "github.com/gomlx/treerun/pkg/unit/inproc"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagModel = flag.String("model", "", "Path to the compiled computation unit (shared library). "+
		"A loader can be selected with a prefix, e.g. \"inproc:<name>\".")
	flagFormat = flag.String("format", "csv", "Format of the input files: \"csv\" (dense) or \"libsvm\" (sparse).")
	flagNumCol = flag.Uint64("num_col", 0, "Number of features for LIBSVM files. "+
		"If 0 it is inferred from the largest column index.")
	flagOneBased = flag.Bool("one_based", false, "LIBSVM column indices start at 1.")
	flagHeader   = flag.Bool("header", false, "CSV files have a header line with the column names.")
	flagMissing  = flag.String("missing", "", "Missing value sentinel for CSV files. "+
		"Empty (default) means NaN, and the tokens NA, NaN, ? and empty fields are missing.")
	flagNumThreads    = flag.Int("nthread", 0, "Number of worker goroutines per prediction. 0 uses all available.")
	flagMargin        = flag.Bool("margin", false, "Output raw margin scores instead of transformed predictions.")
	flagChunk         = flag.Int("chunk", 0, "Number of rows predicted at a time. 0 predicts each file in one batch.")
	flagParallelFiles = flag.Int("parallel_files", 1, "Number of files read and predicted concurrently.")
	flagOutDir        = flag.String("out_dir", "", "Directory where predictions are written, as <file>.pred.csv. "+
		"If empty, predictions are written next to each input file.")
	flagInfo    = flag.Bool("info", false, "Display information about the loaded computation unit.")
	flagServe   = flag.String("serve", "", "If set, serve predictions over HTTP on this address (e.g. \":8080\").")
	flagVerbose = flag.Int("verbose", 0, "If > 0, log the timing of each prediction.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := run(); err != nil {
		klog.Errorf("Error: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	if *flagModel == "" {
		return errors.New("missing -model. See 'treerun -help'")
	}
	args := flag.Args()
	if !*flagInfo && *flagServe == "" && len(args) == 0 {
		return errors.New("nothing to do: give -info, -serve or input files. See 'treerun -help'")
	}

	modelPath, err := fsutil.ExpandHome(*flagModel)
	if err != nil {
		return err
	}
	p := predictor.New()
	if err = p.Load(modelPath); err != nil {
		return err
	}
	defer p.Free()

	if *flagInfo {
		fmt.Println(infoTable(p))
	}

	if len(args) > 0 {
		cfg, err := configFromFlags()
		if err != nil {
			return err
		}
		for ii, arg := range args {
			if args[ii], err = fsutil.ExpandHome(arg); err != nil {
				return err
			}
		}
		results, err := predictFiles(p, cfg, args)
		fmt.Println(resultsTable(results))
		if err != nil {
			return err
		}
	}

	if *flagServe != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(p).ListenAndServe(ctx, *flagServe)
	}
	return nil
}
