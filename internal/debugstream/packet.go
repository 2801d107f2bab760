// Package debugstream implements the telemetry side channel. Every cycle the
// pipeline can emit one packet holding the flattened feature window and the
// raw classifier scores, closed by a fixed footer that lets a reader find
// packet boundaries in an unframed byte stream.
package debugstream

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tphakala/kws-go/internal/errors"
)

// Footer ends every packet.
var Footer = []byte{0, 1, 2, 3, 4}

// FooterLen is the footer length in bytes.
const FooterLen = 5

// ErrPacketSize is returned when a packet does not match the configured geometry.
var ErrPacketSize = errors.NewStd("telemetry packet size mismatch")

// Packet is one decoded telemetry record.
type Packet struct {
	Features   []int8
	Posteriors []uint8
}

// Top returns the index of the highest score, lowest index on ties.
func (p Packet) Top() int {
	top := 0
	for i, v := range p.Posteriors {
		if v > p.Posteriors[top] {
			top = i
		}
	}
	return top
}

// PacketLen returns the encoded size of a packet.
func PacketLen(featureLen, categories int) int {
	return featureLen + categories + FooterLen
}

// Encode returns features ∥ posteriors ∥ footer.
func Encode(features []int8, posteriors []uint8) []byte {
	return AppendPacket(make([]byte, 0, PacketLen(len(features), len(posteriors))), features, posteriors)
}

// AppendPacket appends an encoded packet to dst.
func AppendPacket(dst []byte, features []int8, posteriors []uint8) []byte {
	for _, f := range features {
		dst = append(dst, byte(f))
	}
	dst = append(dst, posteriors...)
	return append(dst, Footer...)
}

// Decoder reads packets of a fixed geometry from a byte stream, skipping
// bytes until it is aligned on a footer.
type Decoder struct {
	r          io.Reader
	featureLen int
	categories int
	buf        []byte
	chunk      []byte
	skipped    int64
	eof        bool
}

// NewDecoder returns a decoder for packets of featureLen features and
// categories scores.
func NewDecoder(r io.Reader, featureLen, categories int) *Decoder {
	return &Decoder{
		r:          r,
		featureLen: featureLen,
		categories: categories,
		chunk:      make([]byte, 4096),
	}
}

// Next returns the next complete packet. It returns io.EOF at a clean end of
// stream and io.ErrUnexpectedEOF when the stream ends inside a packet.
func (d *Decoder) Next() (Packet, error) {
	frameLen := PacketLen(d.featureLen, d.categories)

	for {
		if len(d.buf) >= frameLen {
			if bytes.Equal(d.buf[frameLen-FooterLen:frameLen], Footer) {
				pkt := d.decode(d.buf[:frameLen])
				d.buf = d.buf[frameLen:]
				return pkt, nil
			}
			d.resync(frameLen)
			continue
		}

		if d.eof {
			if len(d.buf) == 0 {
				return Packet{}, io.EOF
			}
			d.skipped += int64(len(d.buf))
			d.buf = nil
			return Packet{}, io.ErrUnexpectedEOF
		}

		n, err := d.r.Read(d.chunk)
		d.buf = append(d.buf, d.chunk[:n]...)
		if err == io.EOF {
			d.eof = true
		} else if err != nil {
			return Packet{}, fmt.Errorf("telemetry read: %w", err)
		}
	}
}

// resync realigns the buffer on the first footer it holds. When the footer
// closes a full packet the buffer is trimmed to that packet's start,
// otherwise everything up to the footer is dropped. Without a footer only the
// last frameLen-1 bytes are kept.
func (d *Decoder) resync(frameLen int) {
	if i := bytes.Index(d.buf, Footer); i >= 0 {
		end := i + FooterLen
		drop := end
		if end >= frameLen {
			drop = end - frameLen
		}
		d.skipped += int64(drop)
		d.buf = d.buf[drop:]
		return
	}
	keep := frameLen - 1
	d.skipped += int64(len(d.buf) - keep)
	d.buf = append(d.buf[:0], d.buf[len(d.buf)-keep:]...)
}

func (d *Decoder) decode(frame []byte) Packet {
	pkt := Packet{
		Features:   make([]int8, d.featureLen),
		Posteriors: make([]uint8, d.categories),
	}
	for i := range pkt.Features {
		pkt.Features[i] = int8(frame[i])
	}
	copy(pkt.Posteriors, frame[d.featureLen:d.featureLen+d.categories])
	return pkt
}

// Skipped returns the number of bytes discarded while resynchronizing.
func (d *Decoder) Skipped() int64 {
	return d.skipped
}
