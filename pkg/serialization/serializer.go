// Package serialization encodes run history payloads for storage backends.
// PRINCIPLES:
// - KISS: one pipeline, encode -> compress -> seal
// - DRY: shared by every history saver
// - SOLID: codecs are swappable behind the Codec interface
package serialization

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrInvalidKey         = errors.New("encryption key must be 16, 24 or 32 bytes")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrShortCiphertext    = errors.New("ciphertext shorter than nonce")
)

// Codec turns values into bytes and back
// PRINCIPLES:
// - ISP: three methods
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// Compression names a compression algorithm
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts none, gzip or zstd; empty means none.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// Config holds serializer settings
type Config struct {
	Codec       Codec
	Compression Compression
	EncryptKey  []byte // AES key; empty disables encryption
}

// Validate checks the compression name and key length
func (c Config) Validate() error {
	if _, err := ParseCompression(string(c.Compression)); err != nil {
		return err
	}
	switch len(c.EncryptKey) {
	case 0, 16, 24, 32:
		return nil
	default:
		return ErrInvalidKey
	}
}

// Serializer runs the full pipeline. It is safe for concurrent use.
type Serializer struct {
	config Config

	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
}

// New creates a serializer; a nil codec defaults to msgpack
func New(config Config) (*Serializer, error) {
	if config.Codec == nil {
		config.Codec = NewMsgPackCodec()
	}
	if config.Compression == "" {
		config.Compression = CompressionNone
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Serializer{config: config}, nil
}

// MustNew is New for static configuration
func MustNew(config Config) *Serializer {
	s, err := New(config)
	if err != nil {
		panic(err)
	}
	return s
}

// Default uses msgpack with zstd and no encryption
func Default() *Serializer {
	return MustNew(Config{Codec: NewMsgPackCodec(), Compression: CompressionZstd})
}

// Name describes the pipeline, e.g. "msgpack+zstd+aes"
func (s *Serializer) Name() string {
	name := s.config.Codec.Name()
	if s.config.Compression != CompressionNone {
		name += "+" + string(s.config.Compression)
	}
	if len(s.config.EncryptKey) > 0 {
		name += "+aes"
	}
	return name
}

// Serialize encodes, compresses, and encrypts v
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", s.config.Codec.Name(), err)
	}
	if data, err = s.compress(data); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if len(s.config.EncryptKey) > 0 {
		if data, err = s.seal(data); err != nil {
			return nil, fmt.Errorf("encrypt: %w", err)
		}
	}
	return data, nil
}

// Deserialize reverses Serialize into v
func (s *Serializer) Deserialize(data []byte, v any) error {
	var err error
	if len(s.config.EncryptKey) > 0 {
		if data, err = s.open(data); err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
	}
	if data, err = s.decompress(data); err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if err := s.config.Codec.Decode(data, v); err != nil {
		return fmt.Errorf("%s decode: %w", s.config.Codec.Name(), err)
	}
	return nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, _, err := s.zstd()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		_, dec, err := s.zstd()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

// zstd lazily builds one encoder/decoder pair; EncodeAll and DecodeAll are
// safe for concurrent use.
func (s *Serializer) zstd() (*zstd.Encoder, *zstd.Decoder, error) {
	s.zstdOnce.Do(func() {
		s.zstdEnc, s.zstdErr = zstd.NewWriter(nil)
		if s.zstdErr != nil {
			return
		}
		s.zstdDec, s.zstdErr = zstd.NewReader(nil)
	})
	return s.zstdEnc, s.zstdDec, s.zstdErr
}

func (s *Serializer) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.config.EncryptKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal prefixes the ciphertext with a random nonce
func (s *Serializer) seal(data []byte) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (s *Serializer) open(data []byte) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(data) < n {
		return nil, ErrShortCiphertext
	}
	return gcm.Open(nil, data[:n], data[n:], nil)
}

// JSONCodec implements JSON serialization
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                    { return "json" }

// MsgPackCodec implements MessagePack serialization. Struct fields use their
// json tag names when no msgpack tag is present.
type MsgPackCodec struct{}

func (MsgPackCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgPackCodec) Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (MsgPackCodec) Name() string { return "msgpack" }

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() Codec { return JSONCodec{} }

// NewMsgPackCodec creates a new MessagePack codec
func NewMsgPackCodec() Codec { return MsgPackCodec{} }
