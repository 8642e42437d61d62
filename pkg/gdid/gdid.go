package gdid

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCounterMax is the highest Counter value an Authority issues unless
// configured otherwise. The top four bits of the counter are left unused.
const DefaultCounterMax uint64 = 1<<60 - 1

// Size is the length of the binary form in bytes.
const Size = 12

// GDID is an immutable (Era, Counter) pair.
type GDID struct {
	Era     uint32
	Counter uint64
}

// Zero is the reserved "no value" sentinel.
var Zero = GDID{}

// IsZero reports whether g is the reserved sentinel.
func (g GDID) IsZero() bool { return g == Zero }

// Compare returns -1, 0, 1 based on (Era, Counter) order.
func (g GDID) Compare(other GDID) int {
	switch {
	case g.Era < other.Era:
		return -1
	case g.Era > other.Era:
		return 1
	case g.Counter < other.Counter:
		return -1
	case g.Counter > other.Counter:
		return 1
	}
	return 0
}

// Less reports whether g sorts strictly before other.
func (g GDID) Less(other GDID) bool { return g.Compare(other) < 0 }

// Bytes returns the 12-byte big-endian representation.
func (g GDID) Bytes() []byte {
	b := make([]byte, Size)
	binary.BigEndian.PutUint32(b[0:4], g.Era)
	binary.BigEndian.PutUint64(b[4:12], g.Counter)
	return b
}

// FromBytes decodes the 12-byte representation produced by Bytes.
func FromBytes(b []byte) (GDID, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("gdid: invalid length %d", len(b))
	}
	return GDID{
		Era:     binary.BigEndian.Uint32(b[0:4]),
		Counter: binary.BigEndian.Uint64(b[4:12]),
	}, nil
}

// String returns the order-preserving 16-character text form.
func (g GDID) String() string { return encode64(g.Bytes()) }

// Format returns the human readable "era:counter" form.
func (g GDID) Format() string {
	return strconv.FormatUint(uint64(g.Era), 10) + ":" + strconv.FormatUint(g.Counter, 10)
}

// Parse decodes the text form produced by String.
func Parse(s string) (GDID, error) {
	b, err := decode64(s)
	if err != nil {
		return Zero, err
	}
	return FromBytes(b)
}

// ParseHuman decodes the "era:counter" form produced by Format.
func ParseHuman(s string) (GDID, error) {
	era, counter, ok := strings.Cut(s, ":")
	if !ok {
		return Zero, fmt.Errorf("gdid: expected era:counter, got %q", s)
	}
	e, err := strconv.ParseUint(era, 10, 32)
	if err != nil {
		return Zero, fmt.Errorf("gdid: era: %w", err)
	}
	c, err := strconv.ParseUint(counter, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("gdid: counter: %w", err)
	}
	return GDID{Era: uint32(e), Counter: c}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (g GDID) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GDID) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
