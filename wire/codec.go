package wire

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/autofilter-go/expr"
)

// Codec compresses and decompresses encoded expressions with ZStandard.
// Create once and reuse; it is safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a reusable codec.
// Uses SpeedDefault (level 3) for balanced compression ratio and speed.
// Caller must call Close() when done to release resources.
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Marshal encodes l into its compressed binary form.
func (c *Codec) Marshal(l *expr.LambdaExpression) ([]byte, error) {
	root, err := encodeLambda(l)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(&envelope{Version: version, Root: root})
	if err != nil {
		return nil, fmt.Errorf("wire: failed to encode MessagePack: %w", err)
	}
	// EncodeAll is goroutine-safe
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Unmarshal decodes data produced by Marshal, resolving type names with
// reg. A nil reg uses DefaultRegistry.
func (c *Codec) Unmarshal(data []byte, reg *TypeRegistry) (*expr.LambdaExpression, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("wire: empty data")
	}
	if reg == nil {
		reg = DefaultRegistry
	}
	// DecodeAll is goroutine-safe
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: failed to decompress: %w", err)
	}
	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("wire: failed to decode MessagePack: %w", err)
	}
	if env.Version != version {
		return nil, fmt.Errorf("wire: unsupported version %d", env.Version)
	}
	return decodeLambda(env.Root, reg)
}

// Close releases codec resources.
func (c *Codec) Close() error {
	if c.decoder != nil {
		c.decoder.Close()
	}
	if c.encoder != nil {
		return c.encoder.Close()
	}
	return nil
}

var defaultCodec = sync.OnceValues(NewCodec)

// Marshal encodes l with a shared codec.
func Marshal(l *expr.LambdaExpression) ([]byte, error) {
	c, err := defaultCodec()
	if err != nil {
		return nil, err
	}
	return c.Marshal(l)
}

// Unmarshal decodes data with a shared codec.
func Unmarshal(data []byte, reg *TypeRegistry) (*expr.LambdaExpression, error) {
	c, err := defaultCodec()
	if err != nil {
		return nil, err
	}
	return c.Unmarshal(data, reg)
}
