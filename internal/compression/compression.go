// Package compression wraps dump output streams with the configured codec.
package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a compression algorithm
type Type string

const (
	TypeNone Type = "none"
	TypeGzip Type = "gzip"
	TypeLZ4  Type = "lz4"
	TypeZstd Type = "zstd"
)

// ParseType normalizes a configured algorithm name
func ParseType(name string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(name))); t {
	case "", TypeNone:
		return TypeNone, nil
	case TypeGzip, TypeLZ4, TypeZstd:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", name)
	}
}

// Compressor creates streaming writers and readers for one algorithm
type Compressor interface {
	NewWriter(w io.Writer, level int) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
	Algorithm() Type
	Extension() string
	DefaultLevel() int
	MinLevel() int
	MaxLevel() int
}

// Manager manages compression operations
type Manager struct {
	compressors map[Type]Compressor
}

// NewManager creates a manager with every supported algorithm registered
func NewManager() *Manager {
	m := &Manager{compressors: make(map[Type]Compressor)}

	m.compressors[TypeGzip] = &GzipCompressor{}
	m.compressors[TypeLZ4] = &LZ4Compressor{}
	m.compressors[TypeZstd] = &ZstdCompressor{}

	return m
}

// NewWriter wraps w with the given algorithm. Out of range levels fall back
// to the algorithm default.
func (m *Manager) NewWriter(w io.Writer, algorithm Type, level int) (io.WriteCloser, error) {
	if algorithm == TypeNone || algorithm == "" {
		return nopWriteCloser{w}, nil
	}

	compressor, err := m.Compressor(algorithm)
	if err != nil {
		return nil, err
	}

	if level < compressor.MinLevel() || level > compressor.MaxLevel() {
		level = compressor.DefaultLevel()
	}

	return compressor.NewWriter(w, level)
}

// NewReader wraps r with a decompressor for the given algorithm
func (m *Manager) NewReader(r io.Reader, algorithm Type) (io.ReadCloser, error) {
	if algorithm == TypeNone || algorithm == "" {
		return io.NopCloser(r), nil
	}

	compressor, err := m.Compressor(algorithm)
	if err != nil {
		return nil, err
	}
	return compressor.NewReader(r)
}

// Extension returns the file suffix for the algorithm, empty for none
func (m *Manager) Extension(algorithm Type) string {
	compressor, err := m.Compressor(algorithm)
	if err != nil {
		return ""
	}
	return compressor.Extension()
}

// Compressor returns the compressor registered for algorithm
func (m *Manager) Compressor(algorithm Type) (Compressor, error) {
	compressor, exists := m.compressors[algorithm]
	if !exists {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
	return compressor, nil
}

// ValidateLevel checks level against the algorithm's range. Zero means default.
func (m *Manager) ValidateLevel(algorithm Type, level int) error {
	if algorithm == TypeNone || level == 0 {
		return nil
	}
	compressor, err := m.Compressor(algorithm)
	if err != nil {
		return err
	}
	if level < compressor.MinLevel() || level > compressor.MaxLevel() {
		return fmt.Errorf("%s compression level must be between %d and %d", algorithm, compressor.MinLevel(), compressor.MaxLevel())
	}
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// GzipCompressor implements gzip compression
type GzipCompressor struct{}

func (gc *GzipCompressor) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	writer, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return writer, nil
}

func (gc *GzipCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return reader, nil
}

func (gc *GzipCompressor) Algorithm() Type   { return TypeGzip }
func (gc *GzipCompressor) Extension() string { return ".gz" }
func (gc *GzipCompressor) DefaultLevel() int { return gzip.DefaultCompression }
func (gc *GzipCompressor) MinLevel() int     { return gzip.BestSpeed }
func (gc *GzipCompressor) MaxLevel() int     { return gzip.BestCompression }

// LZ4Compressor implements LZ4 frame compression
type LZ4Compressor struct{}

func (lc *LZ4Compressor) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	writer := lz4.NewWriter(w)

	// lz4 only distinguishes fast and high compression
	if level > 6 {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, fmt.Errorf("failed to set LZ4 high compression: %w", err)
		}
	}
	return writer, nil
}

func (lc *LZ4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func (lc *LZ4Compressor) Algorithm() Type   { return TypeLZ4 }
func (lc *LZ4Compressor) Extension() string { return ".lz4" }
func (lc *LZ4Compressor) DefaultLevel() int { return 1 }
func (lc *LZ4Compressor) MinLevel() int     { return 1 }
func (lc *LZ4Compressor) MaxLevel() int     { return 12 }

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct{}

func (zc *ZstdCompressor) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	var encoderLevel zstd.EncoderLevel
	switch {
	case level <= 1:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 6:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return encoder, nil
}

func (zc *ZstdCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return decoder.IOReadCloser(), nil
}

func (zc *ZstdCompressor) Algorithm() Type   { return TypeZstd }
func (zc *ZstdCompressor) Extension() string { return ".zst" }
func (zc *ZstdCompressor) DefaultLevel() int { return 3 }
func (zc *ZstdCompressor) MinLevel() int     { return 1 }
func (zc *ZstdCompressor) MaxLevel() int     { return 22 }
