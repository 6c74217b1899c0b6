// Package utils reúne a codificação dos tipos S7 usados no bloco do CLP e a
// formatação de tempo do endpoint /info.
package utils

import (
	"encoding/binary"
	"math"
)

// Tamanho em bytes dos tipos S7
const (
	S7IntSize  = 2
	S7RealSize = 4
)

// PutS7Int grava um INT (16 bits, big endian) no início de b
func PutS7Int(b []byte, v int16) {
	binary.BigEndian.PutUint16(b, uint16(v))
}

// PutS7Real grava um REAL (IEEE 754, big endian) no início de b
func PutS7Real(b []byte, v float32) {
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
}

// S7Int lê um INT do início de b
func S7Int(b []byte) int16 {
	return int16(binary.BigEndian.Uint16(b))
}

// S7Real lê um REAL do início de b
func S7Real(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}
