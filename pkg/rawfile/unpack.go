package rawfile

import (
	"encoding/binary"

	"github.com/abworrall/rawload/pkg/rawerr"
)

// maxDimension bounds the width, height and tile sizes a file may
// declare; no sensor comes close.
const maxDimension = 1 << 20

// A block is one strip or tile of the raw plane. (x0,y0) is where it
// lands in the frame, (w,h) are the dimensions it is encoded with; tiles
// on the right and bottom edges may hang off the frame.
type block struct {
	offset, count int64
	x0, y0        int
	w, h          int
}

// layout works out the strips or tiles that make up the plane.
func layout(d ifd, width, height int) ([]block, error) {
	op := "rawfile.layout"

	if d.has(tagTileOffsets) {
		tw, err := d.int(tagTileWidth, 0)
		if err != nil {
			return nil, rawerr.New(rawerr.CorruptData, op, err)
		}
		th, err := d.int(tagTileLength, 0)
		if err != nil {
			return nil, rawerr.New(rawerr.CorruptData, op, err)
		}
		if tw <= 0 || th <= 0 || tw > maxDimension || th > maxDimension {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "tile size %dx%d", tw, th)
		}
		// Tiles pad the frame out to a multiple of their size; one more
		// than twice the frame (and over 16) can't be real.
		if (tw > 16 && tw > int64(2*width)) || (th > 16 && th > int64(2*height)) {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "tile size %dx%d for a %dx%d frame", tw, th, width, height)
		}
		offsets, err := d.ints(tagTileOffsets)
		if err != nil {
			return nil, rawerr.New(rawerr.CorruptData, op, err)
		}
		counts, err := d.ints(tagTileByteCounts)
		if err != nil {
			return nil, rawerr.New(rawerr.CorruptData, op, err)
		}

		across := (width + int(tw) - 1) / int(tw)
		down := (height + int(th) - 1) / int(th)
		if len(offsets) < across*down || len(counts) < across*down {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "%dx%d tiles needed, have %d offsets and %d counts",
				across, down, len(offsets), len(counts))
		}

		blocks := []block{}
		for ty := 0; ty < down; ty++ {
			for tx := 0; tx < across; tx++ {
				i := ty*across + tx
				blocks = append(blocks, block{
					offset: offsets[i],
					count:  counts[i],
					x0:     tx * int(tw),
					y0:     ty * int(th),
					w:      int(tw),
					h:      int(th),
				})
			}
		}
		return blocks, nil
	}

	offsets, err := d.ints(tagStripOffsets)
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}
	if len(offsets) == 0 {
		return nil, rawerr.Errorf(rawerr.CorruptData, op, "%s has neither strips nor tiles", d.name)
	}
	counts, err := d.ints(tagStripByteCounts)
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}
	if len(counts) < len(offsets) {
		return nil, rawerr.Errorf(rawerr.CorruptData, op, "%d strips but %d byte counts", len(offsets), len(counts))
	}
	rps, err := d.int(tagRowsPerStrip, int64(height))
	if err != nil {
		return nil, rawerr.New(rawerr.CorruptData, op, err)
	}
	if rps <= 0 || rps > int64(height) {
		rps = int64(height)
	}

	needed := (height + int(rps) - 1) / int(rps)
	if len(offsets) < needed {
		return nil, rawerr.Errorf(rawerr.CorruptData, op, "%d rows at %d/strip needs %d strips, have %d",
			height, rps, needed, len(offsets))
	}

	blocks := []block{}
	for i := 0; i < needed; i++ {
		y0 := i * int(rps)
		h := int(rps)
		if y0+h > height {
			h = height - y0
		}
		blocks = append(blocks, block{offset: offsets[i], count: counts[i], y0: y0, w: width, h: h})
	}
	return blocks, nil
}

// minBlockBytes is the least data a block can be encoded in: a packed
// row of samples per row when uncompressed, one huffman bit per sample
// for lossless JPEG.
func minBlockBytes(b block, bps, compression int) int64 {
	if compression == compressionLosslessJPEG {
		return (int64(b.w)*int64(b.h) + 7) / 8
	}
	return int64(b.h) * ((int64(b.w)*int64(bps) + 7) / 8)
}

// checkBlocks makes sure every block lies inside the file and holds
// enough bytes for the samples it claims, before anything is allocated.
func checkBlocks(data []byte, blocks []block, bps, compression int) error {
	op := "rawfile.checkBlocks"
	for i, b := range blocks {
		if b.offset < 0 || b.count <= 0 || b.offset+b.count > int64(len(data)) {
			return rawerr.Errorf(rawerr.CorruptData, op, "block %d [%d,+%d] outside file of %d bytes",
				i, b.offset, b.count, len(data))
		}
		if need := minBlockBytes(b, bps, compression); b.count < need {
			return rawerr.Errorf(rawerr.CorruptData, op, "block %d is %dx%d, needs at least %d bytes, has %d",
				i, b.w, b.h, need, b.count)
		}
	}
	return nil
}

// unpack decodes every block into a width*height plane.
func unpack(data []byte, order binary.ByteOrder, blocks []block, width, height, bps, compression int) ([]uint16, error) {
	op := "rawfile.unpack"
	if err := checkBlocks(data, blocks, bps, compression); err != nil {
		return nil, err
	}
	plane := make([]uint16, width*height)

	for _, b := range blocks {
		src := data[b.offset : b.offset+b.count]

		var vals []uint16
		var err error
		switch compression {
		case compressionNone:
			vals, err = unpackUncompressed(src, order, b.w, b.h, bps)
		case compressionLosslessJPEG:
			vals, err = unpackLosslessJPEG(src, b.w, b.h)
		default:
			err = rawerr.Errorf(rawerr.UnsupportedFormat, op, "compression %d", compression)
		}
		if err != nil {
			return nil, rawerr.Wrap(rawerr.CorruptData, op, err)
		}

		for y := 0; y < b.h && b.y0+y < height; y++ {
			for x := 0; x < b.w && b.x0+x < width; x++ {
				plane[(b.y0+y)*width+b.x0+x] = vals[y*b.w+x]
			}
		}
	}

	return plane, nil
}

// unpackUncompressed handles 8 and 16 bit samples, plus 10/12/14 bit
// samples either packed MSB-first (each row starting on a byte boundary)
// or padded out to 16 bits. The byte count tells us which.
func unpackUncompressed(src []byte, order binary.ByteOrder, w, h, bps int) ([]uint16, error) {
	op := "rawfile.unpackUncompressed"
	n := w * h
	vals := make([]uint16, n)

	switch {
	case bps == 8:
		if len(src) < n {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "%dx%d 8-bit needs %d bytes, have %d", w, h, n, len(src))
		}
		for i := range vals {
			vals[i] = uint16(src[i])
		}

	case bps == 16 || (bps > 8 && bps < 16 && len(src) >= 2*n):
		if len(src) < 2*n {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "%dx%d 16-bit needs %d bytes, have %d", w, h, 2*n, len(src))
		}
		for i := range vals {
			vals[i] = order.Uint16(src[2*i:])
		}

	case bps == 10 || bps == 12 || bps == 14:
		rowBytes := (w*bps + 7) / 8
		if len(src) < rowBytes*h {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "%dx%d %d-bit packed needs %d bytes, have %d",
				w, h, bps, rowBytes*h, len(src))
		}
		for y := 0; y < h; y++ {
			row := src[y*rowBytes : (y+1)*rowBytes]
			bit := 0
			for x := 0; x < w; x++ {
				var v uint32
				for k := 0; k < bps; k++ {
					v <<= 1
					if row[bit>>3]&(0x80>>uint(bit&7)) != 0 {
						v |= 1
					}
					bit++
				}
				vals[y*w+x] = uint16(v)
			}
		}

	default:
		return nil, rawerr.Errorf(rawerr.UnsupportedFormat, op, "%d bits per sample", bps)
	}

	return vals, nil
}

func unpackLosslessJPEG(src []byte, w, h int) ([]uint16, error) {
	img, err := decodeLJ92(src)
	if err != nil {
		return nil, err
	}
	if len(img.Pix) < w*h {
		return nil, rawerr.Errorf(rawerr.CorruptData, "rawfile.unpackLosslessJPEG",
			"block is %dx%d but jpeg holds %d samples (%dx%dx%d)", w, h, len(img.Pix), img.Width, img.Height, img.Components)
	}
	return img.Pix[:w*h], nil
}

// checkLinearization rejects a table whose entries won't fit in a sample.
func checkLinearization(table []int64) error {
	if len(table) > 1<<16 {
		return rawerr.Errorf(rawerr.CorruptData, "rawfile.checkLinearization", "%d entry linearization table", len(table))
	}
	for i, v := range table {
		if v < 0 || v > 0xFFFF {
			return rawerr.Errorf(rawerr.CorruptData, "rawfile.checkLinearization", "linearization entry %d is %d", i, v)
		}
	}
	return nil
}

// linearize maps each sample through the DNG LinearizationTable; samples
// beyond the end of the table take its last value.
func linearize(samples []uint16, table []int64) {
	if len(table) == 0 {
		return
	}
	last := len(table) - 1
	for i, s := range samples {
		idx := int(s)
		if idx > last {
			idx = last
		}
		samples[i] = uint16(table[idx])
	}
}
