package gdid

import "fmt"

// The alphabet is sorted by code point so that the text form orders the same
// way as the binary form.
const alphabet = ".0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

const textSize = Size / 3 * 4

var decodeMap = func() (m [256]byte) {
	for i := range m {
		m[i] = 0xff
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = byte(i)
	}
	return
}()

func encode64(b []byte) string {
	out := make([]byte, 0, textSize)
	for i := 0; i+2 < len(b); i += 3 {
		v := uint32(b[i])<<16 | uint32(b[i+1])<<8 | uint32(b[i+2])
		out = append(out,
			alphabet[v>>18&0x3f],
			alphabet[v>>12&0x3f],
			alphabet[v>>6&0x3f],
			alphabet[v&0x3f],
		)
	}
	return string(out)
}

func decode64(s string) ([]byte, error) {
	if len(s) != textSize {
		return nil, fmt.Errorf("gdid: invalid text length %d", len(s))
	}
	out := make([]byte, 0, Size)
	for i := 0; i < len(s); i += 4 {
		var v uint32
		for j := 0; j < 4; j++ {
			d := decodeMap[s[i+j]]
			if d == 0xff {
				return nil, fmt.Errorf("gdid: invalid character %q", s[i+j])
			}
			v = v<<6 | uint32(d)
		}
		out = append(out, byte(v>>16), byte(v>>8), byte(v))
	}
	return out, nil
}
