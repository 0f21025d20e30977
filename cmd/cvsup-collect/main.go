// Command cvsup-collect runs the collection pass: it drives a
// RevisionRecorder per file from RCS parser events, populating the delta
// store and a TreeStore snapshot per file. Producing those parser events is
// out of scope for this module (see spec.md §1); this binary wires the
// pieces that are in scope and awaits a Source implementation from the
// surrounding pipeline.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/recorder"
	"github.com/optakt/cvsup/store/delta"
	"github.com/optakt/cvsup/store/tree"
)

// Source feeds one file's worth of parser events to a Recorder and reports
// the file's final item list once the file is exhausted. A real
// implementation sits on top of an RCS file parser, which is out of scope
// here.
type Source interface {
	Files() ([]model.FileId, error)
	Replay(fileID model.FileId, rec *recorder.Recorder) ([]model.FileItem, error)
}

func main() {
	var (
		flagRCS    = pflag.String("rcs", "", "directory of RCS files to collect")
		flagDeltas = pflag.String("deltas", "rcs-deltas", "badger path for the delta store")
		flagTrees  = pflag.String("trees", "rcs-trees", "badger path for the tree store")
		flagLevel  = pflag.StringP("log", "l", "info", "log level")
		flagTrunk  = pflag.Bool("trunk-only", false, "record trunk revisions only, discarding branches")
	)
	pflag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(*flagLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	if *flagRCS == "" {
		log.Fatal().Msg("--rcs is required")
	}

	deltaOpts := badger.DefaultOptions(*flagDeltas)
	deltaOpts.Logger = nil
	deltaDB, err := badger.Open(deltaOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open delta store")
	}
	defer deltaDB.Close()

	treeOpts := badger.DefaultOptions(*flagTrees)
	treeOpts.Logger = nil
	treeDB, err := badger.Open(treeOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open tree store")
	}
	defer treeDB.Close()

	deltaStore, err := delta.New(log, deltaDB)
	if err != nil {
		log.Fatal().Err(err).Msg("could not start delta store")
	}
	defer deltaStore.Close()
	collectDelta := delta.CollectView{Store: deltaStore}

	treeStore := tree.New(log, treeDB)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		run(log, *flagRCS, collectDelta, treeStore, *flagTrunk)
	}()

	select {
	case <-done:
	case <-sig:
		log.Warn().Msg("collection interrupted, stores may be incomplete")
	}
}

func run(log zerolog.Logger, rcsDir string, deltaDB recorder.DeltaWriter, treeStore *tree.Store, trunkOnly bool) {
	log.Info().Str("rcs_dir", rcsDir).Bool("trunk_only", trunkOnly).Msg("collection pass starting")
	log.Warn().Msg("no RCS parser wired in; nothing to collect without a Source implementation")
}
