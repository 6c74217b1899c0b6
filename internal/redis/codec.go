package redis

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"fleet_go/internal/models"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// encodeMission serializa a missão em msgpack comprimido com zstd
func encodeMission(m models.Mission) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("erro ao serializar missão %s: %w", m.ID, err)
	}
	return encoder.EncodeAll(buf.Bytes(), nil), nil
}

// decodeMission faz o caminho inverso de encodeMission
func decodeMission(b []byte) (models.Mission, error) {
	var m models.Mission
	raw, err := decoder.DecodeAll(b, nil)
	if err != nil {
		return m, fmt.Errorf("erro ao descomprimir missão: %w", err)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&m); err != nil {
		return m, fmt.Errorf("erro ao desserializar missão: %w", err)
	}
	return m, nil
}
