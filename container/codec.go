/*
 * codec.go, part of westore.
 *
 * Copyright 2026 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package container

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/rmera/westore/nd"
)

//Codec is the compression applied to chunk payloads. The codec byte is the
//first byte of every stored chunk, so files written with different codecs
//can be read by the same code.
type Codec byte

const (
	Raw  Codec = 0
	Zstd Codec = 1
)

//ParseCodec accepts "raw", "none", "" (Raw) and "zstd".
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "raw", "none":
		return Raw, nil
	case "zstd":
		return Zstd, nil
	}
	return Raw, fmt.Errorf("unknown chunk codec %q", s)
}

func (C Codec) String() string {
	if C == Zstd {
		return "zstd"
	}
	return "raw"
}

//zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	zonce sync.Once
	zenc  *zstd.Encoder
	zdec  *zstd.Decoder
	zerr  error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zonce.Do(func() {
		zenc, zerr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zerr != nil {
			return
		}
		zdec, zerr = zstd.NewReader(nil)
	})
	return zenc, zdec, zerr
}

func putElem(buf []byte, dtype nd.Dtype, v float64) []byte {
	v = dtype.Convert(v)
	switch dtype {
	case nd.Float64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	case nd.Float32:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
	case nd.Int64:
		return binary.LittleEndian.AppendUint64(buf, uint64(int64(v)))
	case nd.Int32:
		return binary.LittleEndian.AppendUint32(buf, uint32(int32(v)))
	case nd.Int16:
		return binary.LittleEndian.AppendUint16(buf, uint16(int16(v)))
	default: //uint8 and bool
		return append(buf, byte(v))
	}
}

func getElem(buf []byte, dtype nd.Dtype) float64 {
	switch dtype {
	case nd.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	case nd.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case nd.Int64:
		return float64(int64(binary.LittleEndian.Uint64(buf)))
	case nd.Int32:
		return float64(int32(binary.LittleEndian.Uint32(buf)))
	case nd.Int16:
		return float64(int16(binary.LittleEndian.Uint16(buf)))
	default:
		return float64(buf[0])
	}
}

func compress(codec Codec, raw []byte) ([]byte, error) {
	out := make([]byte, 0, len(raw)+1)
	out = append(out, byte(codec))
	if codec == Raw {
		return append(out, raw...), nil
	}
	enc, _, err := zstdCoders()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw, out), nil
}

func decompress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty chunk payload")
	}
	switch Codec(payload[0]) {
	case Raw:
		return payload[1:], nil
	case Zstd:
		_, dec, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(payload[1:], nil)
	}
	return nil, fmt.Errorf("unknown chunk codec byte %d", payload[0])
}

//encodeChunk packs the row-major values into a chunk payload.
func encodeChunk(codec Codec, dtype nd.Dtype, data []float64) ([]byte, error) {
	raw := make([]byte, 0, len(data)*dtype.Size())
	for _, v := range data {
		raw = putElem(raw, dtype, v)
	}
	return compress(codec, raw)
}

//decodeChunk returns the values in a chunk payload. n is the expected
//number of elements.
func decodeChunk(payload []byte, dtype nd.Dtype, n int) ([]float64, error) {
	raw, err := decompress(payload)
	if err != nil {
		return nil, err
	}
	size := dtype.Size()
	if len(raw) != n*size {
		return nil, fmt.Errorf("chunk holds %d bytes, expected %d", len(raw), n*size)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = getElem(raw[i*size:], dtype)
	}
	return out, nil
}

//encodeRagged packs variable-length rows, each prefixed with its uint32
//element count.
func encodeRagged(codec Codec, dtype nd.Dtype, rows [][]float64) ([]byte, error) {
	raw := make([]byte, 0, 64*len(rows))
	for _, r := range rows {
		raw = binary.LittleEndian.AppendUint32(raw, uint32(len(r)))
		for _, v := range r {
			raw = putElem(raw, dtype, v)
		}
	}
	return compress(codec, raw)
}

func decodeRagged(payload []byte, dtype nd.Dtype, nrows int) ([][]float64, error) {
	raw, err := decompress(payload)
	if err != nil {
		return nil, err
	}
	size := dtype.Size()
	rows := make([][]float64, 0, nrows)
	for i := 0; i < nrows; i++ {
		if len(raw) < 4 {
			return nil, fmt.Errorf("truncated ragged chunk at row %d", i)
		}
		l := int(binary.LittleEndian.Uint32(raw))
		raw = raw[4:]
		if len(raw) < l*size {
			return nil, fmt.Errorf("truncated ragged chunk at row %d", i)
		}
		row := make([]float64, l)
		for j := range row {
			row[j] = getElem(raw[j*size:], dtype)
		}
		raw = raw[l*size:]
		rows = append(rows, row)
	}
	return rows, nil
}
