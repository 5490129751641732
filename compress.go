package genet

import (
	"bytes"
	"compress/flate"
	"io"
)

// Compressor is the optional codec applied to the command-stream tail
// of a datagram (spec §4.1/§6.1). The compressed flag in the datagram
// header is set iff the compressed size is strictly smaller than the
// original.
type Compressor interface {
	Compress(in []byte) ([]byte, error)
	Decompress(in []byte, maxSize int) ([]byte, error)
	Destroy()
}

// flateCompressor is a Compressor built on compress/flate. No
// compression library appears anywhere in the retrieval pack (the
// domain-adjacent hits — kcp-go's FEC, xtaci/smux framing — are not
// compressors), so this is the second deliberate standard-library
// exception documented in DESIGN.md. NewHost does not install it:
// compression is off unless Config.Compressor is set, and that field is
// the pluggable seam for any ecosystem codec.
type flateCompressor struct{}

func newFlateCompressor() *flateCompressor { return &flateCompressor{} }

func (f *flateCompressor) Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *flateCompressor) Decompress(in []byte, maxSize int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(in))
	defer r.Close()
	limited := io.LimitReader(r, int64(maxSize)+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(out) > maxSize {
		return nil, io.ErrShortBuffer
	}
	return out, nil
}

func (f *flateCompressor) Destroy() {}
