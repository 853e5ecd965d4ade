// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression algorithm for rotated segments.
// Reads are extension-driven, so a directory may mix segments written
// under different codec settings.
type Codec uint8

const (
	// CodecZstd compresses segments with zstd at the default level.
	// Best ratio for JSON lines; the default.
	CodecZstd Codec = iota

	// CodecLZ4 compresses segments with the LZ4 frame format. Lower
	// ratio, much cheaper on constrained hosts.
	CodecLZ4
)

const (
	extZstd = ".zst"
	extLZ4  = ".lz4"
)

// String returns the configuration name of the codec.
func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses a codec from its configuration name.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("unknown journal codec: %q", name)
	}
}

func (c Codec) ext() string {
	if c == CodecLZ4 {
		return extLZ4
	}
	return extZstd
}

// zstdEncoder and zstdDecoder are reused across calls. Both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("journal: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("journal: zstd decoder initialization failed: " + err.Error())
	}
}

func (c Codec) compress(data []byte) ([]byte, error) {
	switch c {
	case CodecZstd:
		return zstdEncoder.EncodeAll(data, nil), nil

	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported journal codec: %d", c)
	}
}

// decompress picks the algorithm from the segment's file extension.
func decompress(data []byte, name string) ([]byte, error) {
	switch {
	case strings.HasSuffix(name, extZstd):
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil

	case strings.HasSuffix(name, extLZ4):
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unrecognized segment extension: %s", name)
	}
}
