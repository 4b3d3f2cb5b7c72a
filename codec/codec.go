// Package codec centralizes the little-endian binary encoding helpers used
// by every sketch's on-disk format (spec §6), so the exact byte layout is
// defined once and shared rather than re-implemented per structure.
// Grounded on the teacher's use of encoding/binary throughout z/file.go,
// z/buffer.go and sketch.go.
package codec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/sketchkit/sketchkit/errs"
)

// Writer accumulates little-endian encoded fields into a byte buffer, the
// shared builder every Export implementation uses.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer with cap pre-sized.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) PutUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutInt32(v int32) { w.PutUint32(uint32(v)) }

func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutInt64(v int64) { w.PutUint64(uint64(v)) }

func (w *Writer) PutFloat32(v float32) {
	w.PutUint32(float32bits(v))
}

func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes little-endian encoded fields from a byte buffer,
// returning errs.ErrPersistence when the buffer is too short.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return errs.Persistf("truncated input: need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return float32frombits(v), nil
}

// Bytes consumes and returns the next n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// ToHex uppercase-encodes data with no separators, per §6.1's hex export
// format.
func ToHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// FromHex decodes an uppercase (or any case) hex string back to bytes,
// wrapping malformed input as a persistence error.
func FromHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Persistf("corrupt hex input: %v", err)
	}
	return b, nil
}

// CHeader renders data as a C header: a `const unsigned char` array literal
// plus #define macros for the named footer fields, per §6.1. floatDefines
// are rendered as C float literals (e.g. "FPR 0.050000"), valid alongside
// the integer defines.
func CHeader(varName string, data []byte, defines map[string]uint64, floatDefines map[string]float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#ifndef %s_H\n#define %s_H\n\n", strings.ToUpper(varName), strings.ToUpper(varName))
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "#define %s %d\n", name, defines[name])
	}
	floatNames := make([]string, 0, len(floatDefines))
	for name := range floatDefines {
		floatNames = append(floatNames, name)
	}
	sort.Strings(floatNames)
	for _, name := range floatNames {
		fmt.Fprintf(&sb, "#define %s %f\n", name, floatDefines[name])
	}
	fmt.Fprintf(&sb, "\nstatic const unsigned char %s[%d] = {\n", varName, len(data))
	for i, b := range data {
		if i%12 == 0 {
			sb.WriteString("  ")
		}
		fmt.Fprintf(&sb, "0x%02x", b)
		if i != len(data)-1 {
			sb.WriteString(",")
		}
		if i%12 == 11 {
			sb.WriteString("\n")
		} else {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n};\n\n#endif\n")
	return sb.String()
}
