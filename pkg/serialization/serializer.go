// Package serialization turns stored rule records into bytes and back.
// A Serializer chains a codec, optional compression and optional AES-GCM
// encryption; the stores only ever see the resulting blob.
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

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Domain errors
var (
	ErrUnknownCodec       = errors.New("unknown codec")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrInvalidKey         = errors.New("encryption key must be 16, 24 or 32 bytes")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// Codec encodes values to bytes
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// CompressionType names a compression algorithm
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

// ParseCompression maps a configured name to a CompressionType. The empty
// string means no compression.
func ParseCompression(name string) (CompressionType, error) {
	switch CompressionType(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd:
		return CompressionType(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

// CodecByName returns the codec registered under name ("json" or "msgpack").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "json":
		return NewJSONCodec(), nil
	case "msgpack", "":
		return NewMsgPackCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Config holds serializer settings
type Config struct {
	Codec       Codec
	Compression CompressionType
	EncryptKey  []byte // AES key, 16/24/32 bytes; empty disables encryption
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Codec == nil {
		return fmt.Errorf("%w: codec is required", ErrUnknownCodec)
	}
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

// Serializer runs the encode/compress/encrypt pipeline
type Serializer struct {
	config Config
}

// NewSerializer creates a serializer. The configuration is validated.
func NewSerializer(config Config) (*Serializer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Compression == "" {
		config.Compression = CompressionNone
	}
	return &Serializer{config: config}, nil
}

// New builds a serializer from configuration names, as read from a config
// file.
func New(codec, compression string, key []byte) (*Serializer, error) {
	c, err := CodecByName(codec)
	if err != nil {
		return nil, err
	}
	ct, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return NewSerializer(Config{Codec: c, Compression: ct, EncryptKey: key})
}

// Default returns the msgpack + zstd serializer used by the stores when
// nothing else is configured.
func Default() *Serializer {
	return &Serializer{config: Config{Codec: NewMsgPackCodec(), Compression: CompressionZstd}}
}

// Describe returns a short name of the pipeline, e.g. "msgpack+zstd".
func (s *Serializer) Describe() string {
	name := s.config.Codec.Name()
	if s.config.Compression != CompressionNone {
		name += "+" + string(s.config.Compression)
	}
	if len(s.config.EncryptKey) > 0 {
		name += "+aesgcm"
	}
	return name
}

// Serialize encodes, compresses and encrypts v.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", s.config.Codec.Name(), err)
	}

	data, err = s.compress(data)
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", s.config.Compression, err)
	}

	if len(s.config.EncryptKey) > 0 {
		data, err = s.seal(data)
		if err != nil {
			return nil, fmt.Errorf("encrypt: %w", err)
		}
	}
	return data, nil
}

// Deserialize reverses Serialize into v.
func (s *Serializer) Deserialize(data []byte, v any) error {
	var err error
	if len(s.config.EncryptKey) > 0 {
		data, err = s.open(data)
		if err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
	}

	data, err = s.decompress(data)
	if err != nil {
		return fmt.Errorf("%s decompress: %w", s.config.Compression, err)
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
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
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
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

func (s *Serializer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.config.EncryptKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal prefixes the ciphertext with its nonce
func (s *Serializer) seal(data []byte) ([]byte, error) {
	aead, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

func (s *Serializer) open(data []byte) ([]byte, error) {
	aead, err := s.gcm()
	if err != nil {
		return nil, err
	}
	n := aead.NonceSize()
	if len(data) < n {
		return nil, ErrCiphertextTooShort
	}
	return aead.Open(nil, data[:n], data[n:], nil)
}

// JSONCodec encodes with encoding/json
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                    { return "json" }

// MsgPackCodec encodes with MessagePack
type MsgPackCodec struct{}

func (MsgPackCodec) Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func (MsgPackCodec) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (MsgPackCodec) Name() string                    { return "msgpack" }

// NewJSONCodec creates a JSON codec
func NewJSONCodec() Codec {
	return JSONCodec{}
}

// NewMsgPackCodec creates a MessagePack codec
func NewMsgPackCodec() Codec {
	return MsgPackCodec{}
}
