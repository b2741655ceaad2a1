package rawfiletest

// EncodeLJ92 writes samples as a one component lossless JPEG, predictor
// 1, with a flat huffman table (every difference category gets a 5 bit
// code). Not efficient, but it exercises the decoder's whole path.
func EncodeLJ92(samples []uint16, w, h, precision int) []byte {
	out := []byte{0xFF, 0xD8}

	// SOF3
	out = append(out, 0xFF, 0xC3, 0, 11, byte(precision),
		byte(h>>8), byte(h), byte(w>>8), byte(w),
		1, 1, 0x11, 0)

	// DHT, table 0: 17 codes of length 5, for categories 0..16
	out = append(out, 0xFF, 0xC4, 0, 2+17+17, 0x00)
	counts := make([]byte, 16)
	counts[4] = 17
	out = append(out, counts...)
	for i := 0; i <= 16; i++ {
		out = append(out, byte(i))
	}

	// SOS: one component, table 0, predictor 1, no point transform
	out = append(out, 0xFF, 0xDA, 0, 8, 1, 1, 0x00, 1, 0, 0)

	bw := &bitWriter{out: out}
	initial := int32(1) << uint(precision-1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var pred int32
			switch {
			case y == 0 && x == 0:
				pred = initial
			case x == 0:
				pred = int32(samples[(y-1)*w])
			default:
				pred = int32(samples[y*w+x-1])
			}

			d := (int32(samples[y*w+x]) - pred) & 0xFFFF
			if d >= 32768 {
				d -= 65536
			}

			if d == -32768 {
				bw.write(16, 5)
				continue
			}
			mag := d
			if mag < 0 {
				mag = -mag
			}
			s := 0
			for mag > 0 {
				s++
				mag >>= 1
			}
			bw.write(uint32(s), 5)
			if s > 0 {
				v := d
				if v < 0 {
					v += 1<<uint(s) - 1
				}
				bw.write(uint32(v), s)
			}
		}
	}
	bw.flush()

	return append(bw.out, 0xFF, 0xD9)
}

type bitWriter struct {
	out   []byte
	acc   uint32
	nbits int
}

func (bw *bitWriter) write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		bw.acc = bw.acc<<1 | (v>>uint(i))&1
		bw.nbits++
		if bw.nbits == 8 {
			bw.emit(byte(bw.acc))
			bw.acc, bw.nbits = 0, 0
		}
	}
}

func (bw *bitWriter) emit(b byte) {
	bw.out = append(bw.out, b)
	if b == 0xFF {
		bw.out = append(bw.out, 0x00)
	}
}

// flush pads the last byte out with 1 bits.
func (bw *bitWriter) flush() {
	for bw.nbits > 0 {
		bw.write(1, 1)
	}
}
