package remote

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize caps a decompressed body so a small hostile payload
// cannot expand without bound.
const maxDecodedSize = responseLimitObject * 4

// Encoders and decoders are safe for concurrent EncodeAll/DecodeAll and
// expensive to build, so one of each is shared.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize), zstd.WithDecoderConcurrency(0))
	})
)

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// isZstdEncoded reports whether a Content-Encoding header lists zstd.
func isZstdEncoded(contentEncoding string) bool {
	for _, enc := range strings.Split(contentEncoding, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "zstd") {
			return true
		}
	}
	return false
}
