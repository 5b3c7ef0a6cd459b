package codec

import (
	"errors"
	"math"
)

// errShortRead reports a payload that ended before its schema said it would.
var errShortRead = errors.New("payload truncated")

// bitWriter packs values LSB-first into a byte stream. Field widths come
// from the schema, so the stream carries no self-description.
type bitWriter struct {
	buf  []byte
	used uint8 // bits used in the trailing byte
}

func (w *bitWriter) writeBits(v uint64, bits uint8) {
	for bits > 0 {
		if w.used == 0 {
			w.buf = append(w.buf, 0)
		}
		free := 8 - w.used
		take := bits
		if take > free {
			take = free
		}
		mask := uint64(1)<<take - 1
		w.buf[len(w.buf)-1] |= byte(v&mask) << w.used
		v >>= take
		w.used = (w.used + take) % 8
		bits -= take
	}
}

func (w *bitWriter) writeBool(v bool) {
	if v {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}
}

func (w *bitWriter) writeSigned(v int64, bits uint8) {
	w.writeBits(uint64(v)&(uint64(1)<<bits-1), bits)
}

func (w *bitWriter) writeF32(v float32) {
	w.writeBits(uint64(math.Float32bits(v)), 32)
}

func (w *bitWriter) writeF64(v float64) {
	w.writeBits(math.Float64bits(v), 64)
}

func (w *bitWriter) writeString(s string) {
	w.writeBits(uint64(len(s)), 16)
	for i := 0; i < len(s); i++ {
		w.writeBits(uint64(s[i]), 8)
	}
}

// bitReader mirrors bitWriter.
type bitReader struct {
	buf []byte
	pos uint64 // absolute bit position
}

func (r *bitReader) readBits(bits uint8) (uint64, error) {
	var out uint64
	var got uint8
	for got < bits {
		byteIdx := r.pos / 8
		if byteIdx >= uint64(len(r.buf)) {
			return 0, errShortRead
		}
		bitIdx := uint8(r.pos % 8)
		avail := 8 - bitIdx
		take := bits - got
		if take > avail {
			take = avail
		}
		mask := uint64(1)<<take - 1
		out |= (uint64(r.buf[byteIdx]>>bitIdx) & mask) << got
		r.pos += uint64(take)
		got += take
	}
	return out, nil
}

func (r *bitReader) readBool() (bool, error) {
	v, err := r.readBits(1)
	return v == 1, err
}

func (r *bitReader) readSigned(bits uint8) (int64, error) {
	v, err := r.readBits(bits)
	if err != nil {
		return 0, err
	}
	// Sign-extend from the schema width.
	if bits < 64 && v&(1<<(bits-1)) != 0 {
		v |= ^uint64(0) << bits
	}
	return int64(v), nil
}

func (r *bitReader) readF32() (float32, error) {
	v, err := r.readBits(32)
	return math.Float32frombits(uint32(v)), err
}

func (r *bitReader) readF64() (float64, error) {
	v, err := r.readBits(64)
	return math.Float64frombits(v), err
}

func (r *bitReader) readString() (string, error) {
	n, err := r.readBits(16)
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i := range out {
		c, err := r.readBits(8)
		if err != nil {
			return "", err
		}
		out[i] = byte(c)
	}
	return string(out), nil
}
