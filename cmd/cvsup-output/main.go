// Command cvsup-output runs the output pass: it lazily loads each file's
// filtered snapshot and services checkouts against the delta store
// (read-only) and checkout store (read-write), applying keyword
// substitution unless suppressed.
package main

import (
	"os"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/optakt/cvsup/keyword"
	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/reader"
	"github.com/optakt/cvsup/store/checkout"
	"github.com/optakt/cvsup/store/delta"
	"github.com/optakt/cvsup/store/tree"
)

// RevisionSource drives the output pass: for each revision it wants
// emitted or skipped, it calls into the Reader. Deciding the emission
// order and target format (git fast-import, svndump, ...) is out of scope
// for this module.
type RevisionSource interface {
	Revisions() ([]model.FileId, error)
}

func main() {
	var (
		flagDeltas   = pflag.String("deltas", "rcs-deltas", "badger path for the delta store")
		flagFiltered = pflag.String("trees-filtered", "rcs-trees-filtered", "badger path for the filtered tree store")
		flagCheckout = pflag.String("checkout", "cvs-checkout.db", "badger path for the checkout store")
		flagSuppress = pflag.Bool("suppress-keywords", false, "unexpand rather than expand CVS keywords")
		flagOldDate  = pflag.Bool("old-date-format", false, "use the CVS 1.11 keyword date format")
		flagLevel    = pflag.StringP("log", "l", "info", "log level")
	)
	pflag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(*flagLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	deltaOpts := badger.DefaultOptions(*flagDeltas)
	deltaOpts.Logger = nil
	deltaDB, err := badger.Open(deltaOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open delta store")
	}
	defer deltaDB.Close()

	treeOpts := badger.DefaultOptions(*flagFiltered)
	treeOpts.Logger = nil
	treeDB, err := badger.Open(treeOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open filtered tree store")
	}
	defer treeDB.Close()

	checkoutOpts := badger.DefaultOptions(*flagCheckout)
	checkoutOpts.Logger = nil
	checkoutDB, err := badger.Open(checkoutOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open checkout store")
	}
	defer checkoutDB.Close()

	deltaStore, err := delta.New(log, deltaDB)
	if err != nil {
		log.Fatal().Err(err).Msg("could not start delta store")
	}
	defer deltaStore.Close()
	outputDelta := delta.OutputView{Store: deltaStore}

	treeStore := tree.New(log, treeDB)
	checkoutStore := checkout.New(log, checkoutDB)

	var expander *keyword.Expander
	if *flagOldDate {
		expander = keyword.NewWithOldDateFormat()
	} else {
		expander = keyword.New()
	}

	rd := reader.New(log, treeStore, outputDelta, checkoutStore, expander)
	defer rd.Finish()

	log.Info().Bool("suppress_keywords", *flagSuppress).Msg("output pass starting")
	log.Warn().Msg("no revision source wired in; nothing to emit without a RevisionSource implementation")
}
