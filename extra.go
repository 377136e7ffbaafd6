package smf

import (
	"encoding/binary"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/yehan2002/errors"
)

// extension header types
const (
	ExtraNull       int32 = 0
	ExtraVegetation int32 = 1
)

const (
	extraHeaderSize      = 8
	vegetationHeaderSize = extraHeaderSize + 4

	// maxExtraHeaderSize upper bound for a single extension header.
	// Anything larger is treated as corruption.
	maxExtraHeaderSize = 1 << 20
)

// ExtraHeader an extension header.
// The concrete type is one of *NullHeader, *VegetationHeader or *UnknownHeader.
type ExtraHeader interface {
	// Type the type tag of the header.
	Type() int32
	// Size the serialized size of the header, including the size and type fields.
	Size() int
	appendPayload(b []byte) []byte
}

// NullHeader an extension header with type 0. Its payload is kept verbatim.
type NullHeader struct{ Payload []byte }

// VegetationHeader describes the vegetation density map.
// Ptr is assigned by the layout and points past the feature table.
type VegetationHeader struct{ Ptr int32 }

// UnknownHeader an extension header of an unsupported type,
// or a known type with an unexpected size. It is kept verbatim.
type UnknownHeader struct {
	Kind    int32
	Payload []byte
}

func (*NullHeader) Type() int32 { return ExtraNull }

func (n *NullHeader) Size() int { return extraHeaderSize + len(n.Payload) }

func (n *NullHeader) appendPayload(b []byte) []byte { return append(b, n.Payload...) }

func (*VegetationHeader) Type() int32 { return ExtraVegetation }

func (*VegetationHeader) Size() int { return vegetationHeaderSize }

func (v *VegetationHeader) appendPayload(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v.Ptr))
}

func (u *UnknownHeader) Type() int32 { return u.Kind }

func (u *UnknownHeader) Size() int { return extraHeaderSize + len(u.Payload) }

func (u *UnknownHeader) appendPayload(b []byte) []byte { return append(b, u.Payload...) }

// ExtraHeaders the extension header chain, in file order.
type ExtraHeaders []ExtraHeader

// Size the serialized size of the chain.
func (e ExtraHeaders) Size() int64 {
	var size int64
	for _, h := range e {
		size += int64(h.Size())
	}
	return size
}

// Append appends h to the end of the chain.
func (e *ExtraHeaders) Append(h ExtraHeader) { *e = append(*e, h) }

// Remove removes every header with the given type and returns the number removed.
func (e *ExtraHeaders) Remove(kind int32) (removed int) {
	kept := (*e)[:0]
	for _, h := range *e {
		if h.Type() == kind {
			removed++
			continue
		}
		kept = append(kept, h)
	}
	for i := len(kept); i < len(*e); i++ {
		(*e)[i] = nil
	}
	*e = kept
	return removed
}

// Vegetation returns the vegetation headers in chain order.
func (e ExtraHeaders) Vegetation() (v []*VegetationHeader) {
	for _, h := range e {
		if h, ok := h.(*VegetationHeader); ok {
			v = append(v, h)
		}
	}
	return v
}

func (e ExtraHeaders) marshal() []byte {
	b := make([]byte, 0, e.Size())
	for _, h := range e {
		b = binary.LittleEndian.AppendUint32(b, uint32(h.Size()))
		b = binary.LittleEndian.AppendUint32(b, uint32(h.Type()))
		b = h.appendPayload(b)
	}
	return b
}

// readExtraHeaders reads count extension headers from r.
func readExtraHeaders(r io.Reader, count int, logger logrus.FieldLogger) (ExtraHeaders, error) {
	var e ExtraHeaders
	var prefix [extraHeaderSize]byte

	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			return nil, errors.CauseStr(ErrCorrupted, "truncated extension header")
		}

		size := int32(binary.LittleEndian.Uint32(prefix[0:]))
		kind := int32(binary.LittleEndian.Uint32(prefix[4:]))
		if size < extraHeaderSize || size > maxExtraHeaderSize {
			return nil, errors.CauseStr(ErrCorrupted, "invalid extension header size")
		}

		payload := make([]byte, size-extraHeaderSize)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, errors.CauseStr(ErrCorrupted, "truncated extension header")
		}

		switch {
		case kind == ExtraNull:
			e = append(e, &NullHeader{Payload: payload})
		case kind == ExtraVegetation && size == vegetationHeaderSize:
			e = append(e, &VegetationHeader{Ptr: int32(binary.LittleEndian.Uint32(payload))})
		default:
			logger.Warnf("smf: extension header %d has unknown type %d (%d bytes)", i, kind, size)
			e = append(e, &UnknownHeader{Kind: kind, Payload: payload})
		}
	}

	return e, nil
}
