package transcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/franz/xwalk-migrate/internal/util"
	"golang.org/x/text/encoding/unicode"
)

const (
	nul = 0x00
	soh = 0x01
)

// OriginKey builds the LevelDB local storage key for key under the origin
// prefix: prefix ++ NUL ++ SOH ++ key. Nothing is escaped.
func OriginKey(prefix string, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+2+len(key))
	out = append(out, prefix...)
	out = append(out, nul, soh)
	return append(out, key...)
}

// OriginValue builds the LevelDB local storage value: SOH ++ value.
func OriginValue(value []byte) []byte {
	out := make([]byte, 0, 1+len(value))
	out = append(out, soh)
	return append(out, value...)
}

// SplitOriginKey undoes OriginKey. ok is false for keys that are not
// origin-scoped records, such as the store's VERSION entry.
func SplitOriginKey(k []byte) (prefix string, key []byte, ok bool) {
	i := bytes.Index(k, []byte{nul, soh})
	if i <= 0 || k[0] != '_' {
		return "", nil, false
	}
	return string(k[:i]), k[i+2:], true
}

// SplitOriginValue undoes OriginValue
func SplitOriginValue(v []byte) ([]byte, bool) {
	if len(v) == 0 || v[0] != soh {
		return nil, false
	}
	return v[1:], true
}

// DecodeUTF16LE converts a legacy UTF-16LE value to UTF-8. Odd-length
// input and unpaired surrogates are rejected with util.ErrMalformedValue
// rather than replaced, so a bad row can never be written lossily.
func DecodeUTF16LE(b []byte) ([]byte, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of UTF-16 units: %w", len(b), util.ErrMalformedValue)
	}
	if i := unpairedSurrogate(b); i >= 0 {
		return nil, fmt.Errorf("unpaired surrogate at byte %d: %w", i*2, util.ErrMalformedValue)
	}

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrMalformedValue, err)
	}
	return decoded, nil
}

// unpairedSurrogate returns the index of the first code unit that is a
// surrogate without its partner, or -1.
func unpairedSurrogate(b []byte) int {
	n := len(b) / 2
	for i := 0; i < n; i++ {
		u := binary.LittleEndian.Uint16(b[2*i:])
		if !utf16.IsSurrogate(rune(u)) {
			continue
		}
		// High surrogate followed by a low surrogate
		if u < 0xDC00 && i+1 < n {
			next := binary.LittleEndian.Uint16(b[2*i+2:])
			if next >= 0xDC00 && next <= 0xDFFF {
				i++
				continue
			}
		}
		return i
	}
	return -1
}
