// Command cvsup-filter runs the filter pass: for each file it recomputes
// refcounts against a pruned item list (excluded symbols and branches
// removed) and writes a filtered TreeStore snapshot. Deciding which symbols
// and branches to exclude is an upstream policy concern, out of scope for
// this module; without an ItemSource wired in, this binary falls back to
// copying every file through unfiltered via excluder.Excluder.CopyFile.
package main

import (
	"os"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/optakt/cvsup/excluder"
	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/store/tree"
)

// ItemSource supplies the pruned per-file item list an exclusion run needs.
// A real implementation would call excluder.Excluder.ProcessFile with the
// item list it returns instead of CopyFile; see the package comment.
type ItemSource interface {
	Files() ([]model.FileId, error)
	Items(fileID model.FileId) (items []model.FileItem, skip bool, err error)
}

func main() {
	var (
		flagTrees    = pflag.String("trees", "rcs-trees", "badger path for the collection-pass tree store")
		flagFiltered = pflag.String("trees-filtered", "rcs-trees-filtered", "badger path for the filtered tree store")
		flagLevel    = pflag.StringP("log", "l", "info", "log level")
	)
	pflag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(*flagLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	srcOpts := badger.DefaultOptions(*flagTrees)
	srcOpts.Logger = nil
	srcDB, err := badger.Open(srcOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open tree store")
	}
	defer srcDB.Close()

	dstOpts := badger.DefaultOptions(*flagFiltered)
	dstOpts.Logger = nil
	dstDB, err := badger.Open(dstOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open filtered tree store")
	}
	defer dstDB.Close()

	src := tree.New(log, srcDB)
	dst := tree.New(log, dstDB)
	ex := excluder.New(log)

	log.Info().Msg("filter pass starting")
	log.Warn().Msg("no ItemSource wired in; copying every file through unfiltered")

	files, err := src.Files()
	if err != nil {
		log.Fatal().Err(err).Msg("could not list files")
	}

	for _, fileID := range files {
		if err := ex.CopyFile(fileID, src, dst); err != nil {
			log.Error().Err(err).Uint64("file", uint64(fileID)).Msg("could not copy file snapshot")
			continue
		}
		log.Debug().Uint64("file", uint64(fileID)).Msg("file copied through unfiltered")
	}
}
