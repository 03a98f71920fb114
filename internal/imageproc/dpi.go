package imageproc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

var ErrNotPNG = errors.New("imageproc: not a png stream")

const inchesPerMeter = 39.3700787

// WithDPI returns a copy of a PNG stream whose pHYs chunk declares dpi.
// An existing pHYs chunk is replaced.
func WithDPI(data []byte, dpi int) ([]byte, error) {
	chunks, err := splitChunks(data)
	if err != nil {
		return nil, err
	}

	ppm := uint32(math.Round(float64(dpi) * inchesPerMeter))
	payload := make([]byte, 9)
	binary.BigEndian.PutUint32(payload[0:4], ppm)
	binary.BigEndian.PutUint32(payload[4:8], ppm)
	payload[8] = 1 // unit: meter

	var out bytes.Buffer
	out.Grow(len(data) + 21)
	out.Write(pngSignature)
	for _, c := range chunks {
		if c.kind == "pHYs" {
			continue
		}
		out.Write(c.raw)
		if c.kind == "IHDR" {
			writeChunk(&out, "pHYs", payload)
		}
	}
	return out.Bytes(), nil
}

// ReadDPI reports the horizontal DPI declared by a PNG pHYs chunk.
func ReadDPI(data []byte) (int, bool) {
	chunks, err := splitChunks(data)
	if err != nil {
		return 0, false
	}
	for _, c := range chunks {
		if c.kind != "pHYs" || len(c.data) != 9 || c.data[8] != 1 {
			continue
		}
		ppm := binary.BigEndian.Uint32(c.data[0:4])
		return int(math.Round(float64(ppm) / inchesPerMeter)), true
	}
	return 0, false
}

type pngChunk struct {
	kind string
	data []byte
	raw  []byte
}

func splitChunks(data []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, ErrNotPNG
	}
	var chunks []pngChunk
	rest := data[len(pngSignature):]
	for len(rest) > 0 {
		if len(rest) < 12 {
			return nil, ErrNotPNG
		}
		n := int(binary.BigEndian.Uint32(rest[0:4]))
		if n < 0 || len(rest) < 12+n {
			return nil, ErrNotPNG
		}
		chunks = append(chunks, pngChunk{
			kind: string(rest[4:8]),
			data: rest[8 : 8+n],
			raw:  rest[:12+n],
		})
		rest = rest[12+n:]
	}
	if len(chunks) == 0 || chunks[0].kind != "IHDR" {
		return nil, ErrNotPNG
	}
	return chunks, nil
}

func writeChunk(buf *bytes.Buffer, kind string, payload []byte) {
	var head [8]byte
	binary.BigEndian.PutUint32(head[0:4], uint32(len(payload)))
	copy(head[4:8], kind)
	buf.Write(head[:])
	buf.Write(payload)

	crc := crc32.NewIEEE()
	crc.Write(head[4:8])
	crc.Write(payload)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
}
