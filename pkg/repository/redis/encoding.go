package redis

import (
	"encoding/binary"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// encodeVector serializes an embedding to the little-endian float32 byte
// layout RediSearch expects for FLOAT32 vector fields.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes the byte layout written by encodeVector
func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, goerr.Wrap(model.ErrVectorIndex, "invalid vector byte length", goerr.V("len", len(data)))
	}

	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
