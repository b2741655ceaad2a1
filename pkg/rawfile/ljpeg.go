package rawfile

import (
	"fmt"

	"github.com/abworrall/rawload/pkg/rawerr"
)

// JPEG markers used by lossless (process 14, ITU T.81 annex H) JPEG, as
// written into DNG tiles.
const (
	markerSOF3 = 0xC3
	markerDHT  = 0xC4
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerDRI  = 0xDD
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

// ljpegImage is a decoded lossless JPEG: Width*Height pixels of
// Components interleaved samples each.
type ljpegImage struct {
	Width      int
	Height     int
	Components int
	Precision  int
	Pix        []uint16
}

type huffTable struct {
	mincode [17]int32
	maxcode [18]int32
	valptr  [17]int32
	vals    []uint8
	defined bool
}

func newHuffTable(counts [16]uint8, vals []uint8) huffTable {
	t := huffTable{vals: vals, defined: true}
	code, k := int32(0), int32(0)
	for l := 1; l <= 16; l++ {
		n := int32(counts[l-1])
		t.valptr[l] = k
		t.mincode[l] = code
		if n > 0 {
			t.maxcode[l] = code + n - 1
		} else {
			t.maxcode[l] = -1
		}
		code = (code + n) << 1
		k += n
	}
	t.maxcode[17] = 1 << 30
	return t
}

type bitReader struct {
	data  []byte
	pos   int
	acc   uint32
	nbits int
}

func (br *bitReader) fill() error {
	if br.pos >= len(br.data) {
		return fmt.Errorf("entropy coded data runs past end of tile")
	}
	b := br.data[br.pos]
	if b == 0xFF {
		if br.pos+1 >= len(br.data) || br.data[br.pos+1] != 0x00 {
			return fmt.Errorf("entropy coded data runs into marker at %d", br.pos)
		}
		br.pos += 2
	} else {
		br.pos++
	}
	br.acc = br.acc<<8 | uint32(b)
	br.nbits += 8
	return nil
}

func (br *bitReader) bit() (int32, error) {
	if br.nbits == 0 {
		if err := br.fill(); err != nil {
			return 0, err
		}
	}
	br.nbits--
	return int32(br.acc>>uint(br.nbits)) & 1, nil
}

func (br *bitReader) bits(n int) (int32, error) {
	v := int32(0)
	for i := 0; i < n; i++ {
		b, err := br.bit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | b
	}
	return v, nil
}

// reset drops any buffered bits and steps over the RSTn marker that
// must come next.
func (br *bitReader) reset() error {
	br.acc, br.nbits = 0, 0
	for br.pos < len(br.data) && br.data[br.pos] == 0xFF && br.pos+1 < len(br.data) && br.data[br.pos+1] == 0xFF {
		br.pos++
	}
	if br.pos+1 >= len(br.data) || br.data[br.pos] != 0xFF || br.data[br.pos+1] < markerRST0 || br.data[br.pos+1] > markerRST7 {
		return fmt.Errorf("expected restart marker at %d", br.pos)
	}
	br.pos += 2
	return nil
}

func (br *bitReader) decodeHuff(t *huffTable) (int, error) {
	code, err := br.bit()
	if err != nil {
		return 0, err
	}
	l := 1
	for code > t.maxcode[l] {
		b, err := br.bit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | b
		l++
		if l > 16 {
			return 0, fmt.Errorf("bad huffman code")
		}
	}
	idx := t.valptr[l] + code - t.mincode[l]
	if int(idx) >= len(t.vals) {
		return 0, fmt.Errorf("huffman code out of table")
	}
	return int(t.vals[idx]), nil
}

// diff reads one difference value: a huffman coded bit length, then that
// many raw bits.
func (br *bitReader) diff(t *huffTable) (int32, error) {
	s, err := br.decodeHuff(t)
	if err != nil {
		return 0, err
	}
	switch {
	case s == 0:
		return 0, nil
	case s == 16:
		return 32768, nil
	case s > 16:
		return 0, fmt.Errorf("difference category %d", s)
	}
	v, err := br.bits(s)
	if err != nil {
		return 0, err
	}
	if v < 1<<uint(s-1) {
		v -= 1<<uint(s) - 1
	}
	return v, nil
}

type ljpegDecoder struct {
	img      ljpegImage
	compIDs  []uint8
	tables   [4]huffTable
	restart  int
	haveSOF  bool
	finished bool
}

// decodeLJ92 decodes a single-scan lossless JPEG.
func decodeLJ92(src []byte) (*ljpegImage, error) {
	op := "rawfile.decodeLJ92"
	if len(src) < 4 || src[0] != 0xFF || src[1] != markerSOI {
		return nil, rawerr.Errorf(rawerr.CorruptData, op, "no SOI marker")
	}

	d := ljpegDecoder{}
	pos := 2
	for !d.finished {
		// Find the next marker, skipping fill bytes.
		for pos < len(src) && src[pos] != 0xFF {
			pos++
		}
		for pos < len(src) && src[pos] == 0xFF {
			pos++
		}
		if pos >= len(src) {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "ran out of data looking for a marker")
		}
		marker := src[pos]
		pos++

		if marker == markerEOI {
			break
		}
		if pos+2 > len(src) {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "truncated marker %02X", marker)
		}
		segLen := int(src[pos])<<8 | int(src[pos+1])
		if segLen < 2 || pos+segLen > len(src) {
			return nil, rawerr.Errorf(rawerr.CorruptData, op, "marker %02X length %d runs off end", marker, segLen)
		}
		seg := src[pos+2 : pos+segLen]
		pos += segLen

		var err error
		switch {
		case marker == markerSOF3:
			err = d.parseSOF(seg)
		case marker >= 0xC0 && marker <= 0xCF && marker != markerDHT && marker != 0xC8 && marker != 0xCC:
			return nil, rawerr.Errorf(rawerr.UnsupportedFormat, op, "JPEG process SOF%d, only lossless (SOF3) is handled", marker-0xC0)
		case marker == markerDHT:
			err = d.parseDHT(seg)
		case marker == markerDRI:
			if len(seg) < 2 {
				err = fmt.Errorf("short DRI")
			} else {
				d.restart = int(seg[0])<<8 | int(seg[1])
			}
		case marker == markerSOS:
			var n int
			n, err = d.decodeScan(seg, src[pos:])
			pos += n
			d.finished = true
		}
		if err != nil {
			return nil, rawerr.Wrap(rawerr.CorruptData, op, err)
		}
	}

	if !d.finished {
		return nil, rawerr.Errorf(rawerr.CorruptData, op, "no scan found")
	}
	return &d.img, nil
}

func (d *ljpegDecoder) parseSOF(seg []byte) error {
	if len(seg) < 6 {
		return fmt.Errorf("short SOF3")
	}
	d.img.Precision = int(seg[0])
	d.img.Height = int(seg[1])<<8 | int(seg[2])
	d.img.Width = int(seg[3])<<8 | int(seg[4])
	d.img.Components = int(seg[5])

	if d.img.Precision < 2 || d.img.Precision > 16 {
		return fmt.Errorf("precision %d", d.img.Precision)
	}
	if d.img.Width == 0 || d.img.Height == 0 || d.img.Components == 0 || d.img.Components > 4 {
		return fmt.Errorf("bad frame %dx%dx%d", d.img.Width, d.img.Height, d.img.Components)
	}
	if len(seg) < 6+3*d.img.Components {
		return fmt.Errorf("short SOF3 component list")
	}
	for i := 0; i < d.img.Components; i++ {
		d.compIDs = append(d.compIDs, seg[6+3*i])
	}
	d.haveSOF = true
	return nil
}

func (d *ljpegDecoder) parseDHT(seg []byte) error {
	for len(seg) > 0 {
		if len(seg) < 17 {
			return fmt.Errorf("short DHT")
		}
		th := seg[0] & 0x0F
		if th > 3 {
			return fmt.Errorf("DHT table id %d", th)
		}
		var counts [16]uint8
		total := 0
		for i := 0; i < 16; i++ {
			counts[i] = seg[1+i]
			total += int(counts[i])
		}
		if len(seg) < 17+total {
			return fmt.Errorf("short DHT values")
		}
		vals := append([]uint8{}, seg[17:17+total]...)
		d.tables[th] = newHuffTable(counts, vals)
		seg = seg[17+total:]
	}
	return nil
}

// decodeScan parses the SOS header and decodes the entropy coded data
// that follows it. It returns how many bytes of data were consumed.
func (d *ljpegDecoder) decodeScan(seg []byte, data []byte) (int, error) {
	op := "rawfile.decodeScan"
	if !d.haveSOF {
		return 0, fmt.Errorf("SOS before SOF3")
	}
	if len(seg) < 1 {
		return 0, fmt.Errorf("short SOS")
	}
	ns := int(seg[0])
	if len(seg) < 1+2*ns+3 {
		return 0, fmt.Errorf("short SOS")
	}
	if ns != d.img.Components {
		return 0, rawerr.Errorf(rawerr.UnsupportedFormat, op, "scan has %d of %d components", ns, d.img.Components)
	}

	nc := d.img.Components
	tables := make([]*huffTable, nc)
	for i := 0; i < ns; i++ {
		cs, td := seg[1+2*i], seg[2+2*i]>>4
		found := false
		for c, id := range d.compIDs {
			if id == cs {
				if td > 3 || !d.tables[td].defined {
					return 0, fmt.Errorf("component %d uses undefined table %d", cs, td)
				}
				tables[c] = &d.tables[td]
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("scan names unknown component %d", cs)
		}
	}
	predictor := int(seg[1+2*ns])
	pt := int(seg[3+2*ns] & 0x0F)
	if predictor < 1 || predictor > 7 {
		return 0, rawerr.Errorf(rawerr.UnsupportedFormat, op, "predictor %d", predictor)
	}
	if pt >= d.img.Precision {
		return 0, fmt.Errorf("point transform %d with precision %d", pt, d.img.Precision)
	}

	w, h := d.img.Width, d.img.Height
	if d.restart > 0 && d.restart%w != 0 {
		return 0, rawerr.Errorf(rawerr.UnsupportedFormat, op, "restart interval %d is not a whole number of %d pixel rows", d.restart, w)
	}

	// Each sample takes at least one huffman bit.
	if int64(w)*int64(h)*int64(nc) > 8*int64(len(data)) {
		return 0, rawerr.Errorf(rawerr.CorruptData, op, "%dx%dx%d frame but only %d bytes of scan data", w, h, nc, len(data))
	}
	pix := make([]int32, w*h*nc)
	br := &bitReader{data: data}
	initial := int32(1) << uint(d.img.Precision-pt-1)

	firstRow := true
	for y := 0; y < h; y++ {
		if y > 0 && d.restart > 0 && (y*w)%d.restart == 0 {
			if err := br.reset(); err != nil {
				return 0, err
			}
			firstRow = true
		}

		for x := 0; x < w; x++ {
			for c := 0; c < nc; c++ {
				diff, err := br.diff(tables[c])
				if err != nil {
					return 0, fmt.Errorf("pixel (%d,%d) comp %d: %v", x, y, c, err)
				}

				idx := (y*w+x)*nc + c
				var pred int32
				switch {
				case firstRow && x == 0:
					pred = initial
				case firstRow:
					pred = pix[idx-nc]
				case x == 0:
					pred = pix[idx-w*nc]
				default:
					ra, rb, rc := pix[idx-nc], pix[idx-w*nc], pix[idx-w*nc-nc]
					switch predictor {
					case 1:
						pred = ra
					case 2:
						pred = rb
					case 3:
						pred = rc
					case 4:
						pred = ra + rb - rc
					case 5:
						pred = ra + ((rb - rc) >> 1)
					case 6:
						pred = rb + ((ra - rc) >> 1)
					case 7:
						pred = (ra + rb) >> 1
					}
				}

				pix[idx] = (pred + diff) & 0xFFFF
			}
		}
		firstRow = false
	}

	d.img.Pix = make([]uint16, len(pix))
	for i, v := range pix {
		d.img.Pix[i] = uint16(v << uint(pt))
	}
	return br.pos, nil
}
