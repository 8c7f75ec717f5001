package bitvec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bitdex/bitdex/internal/bitdexerr"
)

// Encode writes the bitvector as an 8-byte header (total bit size, then
// word count, each a little-endian uint32) followed by the raw word
// sequence, also little-endian. A bitvector is self-describing: decoding needs no
// external schema, since tailActive is a deterministic function of the
// decoded size (spec §6).
func (b *Bitvector) Encode(w_ io.Writer) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], b.size)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(b.words)))
	if _, err := w_.Write(hdr[:]); err != nil {
		return bitdexerr.New(bitdexerr.IO, "bitvec.Encode", err)
	}
	buf := make([]byte, 4*len(b.words))
	for i, word := range b.words {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], word)
	}
	if _, err := w_.Write(buf); err != nil {
		return bitdexerr.New(bitdexerr.IO, "bitvec.Encode", err)
	}
	return nil
}

// Decode reads a bitvector previously written by Encode. A truncated
// stream, or a fill whose implied length exceeds the declared total
// size, is a fatal decode-error.
func Decode(r io.Reader) (*Bitvector, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, bitdexerr.New(bitdexerr.Decode, "bitvec.Decode", err)
	}
	size := binary.LittleEndian.Uint32(hdr[0:4])
	nWords := binary.LittleEndian.Uint32(hdr[4:8])
	if nWords == 0 {
		return nil, bitdexerr.New(bitdexerr.Decode, "bitvec.Decode",
			fmt.Errorf("word count is zero"))
	}
	buf := make([]byte, 4*nWords)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, bitdexerr.New(bitdexerr.Decode, "bitvec.Decode", err)
	}
	words := make([]uint32, nWords)
	var count uint32
	var spanSoFar uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		last := i == int(nWords)-1
		word := words[i]
		if isFill(word) {
			span := fillLength(word) * w
			if spanSoFar+span > size {
				return nil, bitdexerr.New(bitdexerr.Decode, "bitvec.Decode",
					fmt.Errorf("fill at word %d overruns declared size %d", i, size))
			}
			spanSoFar += span
			if fillValue(word) {
				count += span
			}
			continue
		}
		var active uint32
		if last {
			active = size - spanSoFar
			if active > w {
				return nil, bitdexerr.New(bitdexerr.Decode, "bitvec.Decode",
					fmt.Errorf("tail active-bit count %d exceeds word width", active))
			}
		} else {
			active = w
		}
		spanSoFar += active
		bits := literalBits(word)
		count += uint32(popcount31(bits, active))
	}
	if spanSoFar != size {
		return nil, bitdexerr.New(bitdexerr.Decode, "bitvec.Decode",
			fmt.Errorf("decoded span %d does not match declared size %d", spanSoFar, size))
	}
	tail := size % w
	return &Bitvector{words: words, size: size, count: count, tail: tail}, nil
}

func popcount31(bits uint32, active uint32) int {
	bits &= (uint32(1) << active) - 1
	n := 0
	for bits != 0 {
		bits &= bits - 1
		n++
	}
	return n
}
