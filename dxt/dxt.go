// Package dxt implements the DXT1 (BC1) 4x4 block texture codec.
//
// Pixels are RGBA, 4 bytes per pixel, non-premultiplied.
// Pixels with an alpha below 128 are encoded as transparent black using the
// 3 colour mode of DXT1, all other pixels are treated as opaque.
package dxt

import (
	"encoding/binary"
)

// BlockSize the size of a single compressed 4x4 block.
const BlockSize = 8

const alphaThreshold = 128

// DXT1 a DXT1 codec. The zero value is ready to use.
type DXT1 struct{}

// StorageSize returns the number of bytes needed to store a width x height image.
func (DXT1) StorageSize(width, height int) int { return blocks(width) * blocks(height) * BlockSize }

// Compress compresses the given RGBA pixels.
// len(rgba) must be at least width*height*4.
func (d DXT1) Compress(rgba []byte, width, height int) []byte {
	dst := make([]byte, d.StorageSize(width, height))
	var block [16][4]byte

	offset := 0
	for by := 0; by < height; by += 4 {
		for bx := 0; bx < width; bx += 4 {
			gather(&block, rgba, width, height, bx, by)
			encodeBlock(dst[offset:offset+BlockSize], &block)
			offset += BlockSize
		}
	}
	return dst
}

// Decompress decompresses the given blocks into a width x height RGBA image.
func (DXT1) Decompress(blocks []byte, width, height int) []byte {
	dst := make([]byte, width*height*4)
	var block [16][4]byte

	offset := 0
	for by := 0; by < height; by += 4 {
		for bx := 0; bx < width; bx += 4 {
			if offset+BlockSize > len(blocks) {
				return dst
			}
			decodeBlock(&block, blocks[offset:offset+BlockSize])
			scatter(dst, &block, width, height, bx, by)
			offset += BlockSize
		}
	}
	return dst
}

func blocks(v int) int { return (v + 3) / 4 }

// gather copies the 4x4 block at bx,by into block.
// Pixels outside the image repeat the nearest edge pixel.
func gather(block *[16][4]byte, rgba []byte, width, height, bx, by int) {
	for i := 0; i < 16; i++ {
		x, y := bx+i&3, by+i>>2
		if x >= width {
			x = width - 1
		}
		if y >= height {
			y = height - 1
		}
		copy(block[i][:], rgba[(y*width+x)*4:])
	}
}

func scatter(rgba []byte, block *[16][4]byte, width, height, bx, by int) {
	for i := 0; i < 16; i++ {
		x, y := bx+i&3, by+i>>2
		if x < width && y < height {
			copy(rgba[(y*width+x)*4:], block[i][:])
		}
	}
}

func encodeBlock(dst []byte, block *[16][4]byte) {
	var lo, hi [3]int
	lo = [3]int{255, 255, 255}
	opaque, transparent := 0, false

	for i := range block {
		if block[i][3] < alphaThreshold {
			transparent = true
			continue
		}
		opaque++
		for c := 0; c < 3; c++ {
			v := int(block[i][c])
			if v < lo[c] {
				lo[c] = v
			}
			if v > hi[c] {
				hi[c] = v
			}
		}
	}

	if opaque == 0 {
		// both endpoints zero selects the 3 colour mode, index 3 is transparent
		binary.LittleEndian.PutUint32(dst[0:], 0)
		binary.LittleEndian.PutUint32(dst[4:], 0xFFFFFFFF)
		return
	}

	c0, c1 := pack565(hi), pack565(lo)

	if transparent {
		// 3 colour mode requires c0 <= c1
		if c0 > c1 {
			c0, c1 = c1, c0
		}
	} else if c0 < c1 {
		c0, c1 = c1, c0
	}

	palette := makePalette(c0, c1)
	colors := 4
	if c0 <= c1 {
		colors = 3
	}

	var indices uint32
	for i := range block {
		var idx int
		if block[i][3] < alphaThreshold {
			idx = 3
		} else if c0 != c1 {
			idx = nearest(palette[:colors], block[i])
		}
		indices |= uint32(idx) << (2 * uint(i))
	}

	binary.LittleEndian.PutUint16(dst[0:], c0)
	binary.LittleEndian.PutUint16(dst[2:], c1)
	binary.LittleEndian.PutUint32(dst[4:], indices)
}

func decodeBlock(block *[16][4]byte, src []byte) {
	c0 := binary.LittleEndian.Uint16(src[0:])
	c1 := binary.LittleEndian.Uint16(src[2:])
	indices := binary.LittleEndian.Uint32(src[4:])

	palette := makePalette(c0, c1)
	for i := range block {
		block[i] = palette[indices>>(2*uint(i))&3]
	}
}

// makePalette returns the four colours addressed by a block with the given endpoints.
func makePalette(c0, c1 uint16) (p [4][4]byte) {
	a, b := unpack565(c0), unpack565(c1)
	p[0] = [4]byte{byte(a[0]), byte(a[1]), byte(a[2]), 255}
	p[1] = [4]byte{byte(b[0]), byte(b[1]), byte(b[2]), 255}

	if c0 > c1 {
		for c := 0; c < 3; c++ {
			p[2][c] = byte((2*a[c] + b[c]) / 3)
			p[3][c] = byte((a[c] + 2*b[c]) / 3)
		}
		p[2][3], p[3][3] = 255, 255
	} else {
		for c := 0; c < 3; c++ {
			p[2][c] = byte((a[c] + b[c]) / 2)
		}
		p[2][3] = 255
		p[3] = [4]byte{}
	}
	return p
}

func nearest(palette [][4]byte, px [4]byte) (idx int) {
	best := -1
	for i, p := range palette {
		d := 0
		for c := 0; c < 3; c++ {
			v := int(p[c]) - int(px[c])
			d += v * v
		}
		if best < 0 || d < best {
			best, idx = d, i
		}
	}
	return idx
}

func pack565(c [3]int) uint16 {
	r := (c[0]*31 + 127) / 255
	g := (c[1]*63 + 127) / 255
	b := (c[2]*31 + 127) / 255
	return uint16(r<<11 | g<<5 | b)
}

func unpack565(v uint16) [3]int {
	r, g, b := int(v>>11&0x1f), int(v>>5&0x3f), int(v&0x1f)
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}
