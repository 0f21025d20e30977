// Package codec implements the cbor-plus-zstd encode/compress pipeline used
// to persist TreeStore snapshots: a flat sequence of record.Row values,
// tagged by variant, with no index remapping since rows address each other
// by RevisionId rather than by array position.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/optakt/cvsup/record"
)

// Codec encodes record.Row snapshots using cbor encoding and zstandard
// compression, the same encode-then-compress shape the teacher uses for its
// ledger payload snapshots.
type Codec struct {
	encoder cbor.EncMode
	decoder cbor.DecMode

	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// New creates a new Codec. It panics on construction failure, since the
// options passed here are static and a failure means a build-time mistake,
// not a runtime condition callers should handle.
func New() *Codec {
	encOptions := cbor.CanonicalEncOptions()
	encoder, err := encOptions.EncMode()
	if err != nil {
		panic(err)
	}

	decOptions := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}
	decoder, err := decOptions.DecMode()
	if err != nil {
		panic(err)
	}

	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(err)
	}
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}

	return &Codec{
		encoder:      encoder,
		decoder:      decoder,
		compressor:   compressor,
		decompressor: decompressor,
	}
}

// Marshal encodes the given rows as cbor and compresses the result.
func (c *Codec) Marshal(rows []record.Row) ([]byte, error) {
	data, err := c.encoder.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("could not encode rows: %w", err)
	}
	return c.compressor.EncodeAll(data, nil), nil
}

// Unmarshal decompresses and decodes a snapshot produced by Marshal.
func (c *Codec) Unmarshal(compressed []byte) ([]record.Row, error) {
	data, err := c.decompressor.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("could not decompress rows: %w", err)
	}

	var rows []record.Row
	if err := c.decoder.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("could not decode rows: %w", err)
	}
	return rows, nil
}
