package location

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: version | era_be4 | counter_be8 | crc32c(version..counter)

const (
	recordVersion = 1
	recordSize    = 1 + 4 + 8 + 4
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeState(st State) []byte {
	out := make([]byte, recordSize)
	out[0] = recordVersion
	binary.BigEndian.PutUint32(out[1:5], st.Era)
	binary.BigEndian.PutUint64(out[5:13], st.Counter)
	binary.BigEndian.PutUint32(out[13:], crc32.Checksum(out[:13], castagnoli))
	return out
}

func decodeState(b []byte) (State, error) {
	if len(b) != recordSize || b[0] != recordVersion {
		return State{}, ErrCorrupt
	}
	if crc32.Checksum(b[:13], castagnoli) != binary.BigEndian.Uint32(b[13:]) {
		return State{}, ErrCorrupt
	}
	return State{
		Era:     binary.BigEndian.Uint32(b[1:5]),
		Counter: binary.BigEndian.Uint64(b[5:13]),
	}, nil
}
