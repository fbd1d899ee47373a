package gtkserver

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// EncodeBase64 encodes data with standard padding
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes leniently: characters outside the alphabet, padding
// included, are skipped and a dangling sextet is dropped.
func DecodeBase64(s string) []byte {
	var clean strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(base64Alphabet, s[i]) >= 0 {
			clean.WriteByte(s[i])
		}
	}
	text := clean.String()
	if len(text)%4 == 1 {
		text = text[:len(text)-1]
	}
	out, err := base64.RawStdEncoding.DecodeString(text)
	if err != nil {
		return nil
	}
	return out
}

// packField is one typed slot of a pack format
type packField byte

func (f packField) size() int {
	switch f {
	case 'i', 'f':
		return 4
	case 'l', 'd':
		return 8
	case 'c':
		return 1
	case 's':
		return 2
	}
	return 0
}

// parsePackFormat splits "%i%d" style formats; a format without '%'
// is read one type letter per character.
func parsePackFormat(format string) ([]packField, error) {
	var letters []byte
	if strings.Contains(format, "%") {
		for _, piece := range strings.Split(format, "%") {
			if piece != "" {
				letters = append(letters, piece[0])
			}
		}
	} else {
		letters = []byte(strings.TrimSpace(format))
	}
	if len(letters) == 0 {
		return nil, fmt.Errorf("empty pack format")
	}

	fields := make([]packField, len(letters))
	for i, c := range letters {
		f := packField(c)
		if f.size() == 0 {
			return nil, fmt.Errorf("unknown type '%c' in format %q", c, format)
		}
		fields[i] = f
	}
	return fields, nil
}

// FormatSize returns the number of bytes a format occupies
func FormatSize(format string) (int, error) {
	fields, err := parsePackFormat(format)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range fields {
		n += f.size()
	}
	return n, nil
}

// Pack stores values in the native little-endian layout and returns base64
func Pack(format string, values []string) (string, error) {
	fields, err := parsePackFormat(format)
	if err != nil {
		return "", err
	}
	if len(values) < len(fields) {
		return "", fmt.Errorf("format %q needs %d values, got %d", format, len(fields), len(values))
	}

	var buf []byte
	for i, f := range fields {
		v := values[i]
		switch f {
		case 'i':
			buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(CAtoi(v))))
		case 'l':
			buf = binary.LittleEndian.AppendUint64(buf, uint64(CAtoi(v)))
		case 'f':
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(CAtof(v))))
		case 'd':
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(CAtof(v)))
		case 'c':
			buf = append(buf, byte(int8(CAtoi(v))))
		case 's':
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(CAtoi(v))))
		}
	}
	return EncodeBase64(buf), nil
}

// Unpack decodes base64 data laid out per format
func Unpack(format, data string) (string, error) {
	return UnpackBytes(format, DecodeBase64(data))
}

// UnpackBytes renders raw bytes laid out per format, space separated
func UnpackBytes(format string, data []byte) (string, error) {
	fields, err := parsePackFormat(format)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(fields))
	pos := 0
	for _, f := range fields {
		if pos+f.size() > len(data) {
			return "", fmt.Errorf("data too short for format %q", format)
		}
		chunk := data[pos : pos+f.size()]
		pos += f.size()

		switch f {
		case 'i':
			parts = append(parts, strconv.Itoa(int(int32(binary.LittleEndian.Uint32(chunk)))))
		case 'l':
			parts = append(parts, strconv.FormatInt(int64(binary.LittleEndian.Uint64(chunk)), 10))
		case 'f':
			parts = append(parts, fmt.Sprintf("%f", math.Float32frombits(binary.LittleEndian.Uint32(chunk))))
		case 'd':
			parts = append(parts, fmt.Sprintf("%f", math.Float64frombits(binary.LittleEndian.Uint64(chunk))))
		case 'c':
			parts = append(parts, strconv.Itoa(int(int8(chunk[0]))))
		case 's':
			parts = append(parts, strconv.Itoa(int(int16(binary.LittleEndian.Uint16(chunk)))))
		}
	}
	return strings.Join(parts, " "), nil
}

// CAtoi parses a leading integer the way C's atol does: leading blanks
// and a sign are allowed, parsing stops at the first non-digit and a
// missing number is 0.
func CAtoi(s string) int64 {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	var n int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

// CAtof parses the longest leading decimal number of s, independent of locale
func CAtof(s string) float64 {
	s = strings.TrimSpace(s)
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return 0
}

// CStrtol parses an integer with C "%i" rules: 0x for hex, a leading 0 for octal
func CStrtol(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 0, 64)
}
