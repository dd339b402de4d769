package store

import (
	"bytes"
	"fmt"
	"strd/internal/structures"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

type Compressor interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
}

type ZstdCompression struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (z *ZstdCompression) Compress(val []byte) ([]byte, error) {
	return z.encoder.EncodeAll(val, make([]byte, 0, len(val)/2)), nil
}

func (z *ZstdCompression) Decompress(val []byte) ([]byte, error) {
	return z.decoder.DecodeAll(val, nil)
}

func NewZstdCompressor() (Compressor, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompression{encoder: encoder, decoder: decoder}, nil
}

// zstdMagic starts every zstd frame. JSON never does, so compressed and
// plain records can live side by side and the compress setting can be
// flipped without migrating existing keys.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type Codec struct {
	compressor Compressor
	compress   bool
}

func NewCodec(compressor Compressor, compress bool) *Codec {
	return &Codec{compressor: compressor, compress: compress}
}

func NewCodecProvider(conf *structures.Config, compressor Compressor) *Codec {
	return NewCodec(compressor, conf.Store.Compress)
}

func (c *Codec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !c.compress || c.compressor == nil {
		return data, nil
	}
	return c.compressor.Compress(data)
}

func (c *Codec) Decode(data []byte, v any) error {
	if bytes.HasPrefix(data, zstdMagic) {
		if c.compressor == nil {
			return fmt.Errorf("compressed record without a compressor")
		}
		raw, err := c.compressor.Decompress(data)
		if err != nil {
			return err
		}
		data = raw
	}
	return json.Unmarshal(data, v)
}
