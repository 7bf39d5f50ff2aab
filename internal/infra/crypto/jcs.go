package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"veritas/internal/domain"
)

// Canonicalize renders v as JCS-style canonical JSON: object keys sorted,
// numbers in ES6 shortest form, no insignificant whitespace. Identical
// logical content always yields identical bytes. Every hash and signature in
// the engine goes through this single implementation; issuance-time and
// verification-time bytes must never drift.
//
// Optional fields are always excluded when absent (`omitempty` on the
// payload structs), never emitted as null.
func Canonicalize(v any) ([]byte, error) {
	value, err := decodeValue(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalizeJSON canonicalizes an existing JSON document.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	return Canonicalize(json.RawMessage(input))
}

// decodeValue reduces v to the JSON data model (null, bool, string,
// json.Number, map, slice) by round-tripping through encoding/json when v is
// not already in that model. Unsupported values (NaN, cycles, channels)
// surface as ErrCanonicalization.
func decodeValue(v any) (any, error) {
	switch value := v.(type) {
	case nil, bool, string, json.Number, map[string]any, []any:
		return value, nil
	case json.RawMessage:
		return parseJSON([]byte(value))
	case []byte:
		return parseJSON(value)
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCanonicalization, err)
		}
		return parseJSON(raw)
	}
}

func parseJSON(input []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrCanonicalization, err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != nil {
		if errors.Is(err, io.EOF) {
			return value, nil
		}
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrCanonicalization, err)
	}
	return nil, fmt.Errorf("%w: trailing data after JSON value", domain.ErrCanonicalization)
}

func encodeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case string:
		encodeString(buf, v)
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return fmt.Errorf("%w: invalid number %q", domain.ErrCanonicalization, v.String())
		}
		return encodeNumber(buf, f)
	case float64:
		return encodeNumber(buf, v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: unsupported type %T", domain.ErrCanonicalization, value)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// encodeNumber writes f in ES6 Number#toString shortest form, the JCS rule
// for numbers. NaN and infinities are not representable.
func encodeNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", domain.ErrCanonicalization)
	}
	if f == 0 {
		buf.WriteByte('0')
		return nil
	}
	if f < 0 {
		buf.WriteByte('-')
		f = -f
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, ok := strings.Cut(sci, "e")
	if !ok {
		return fmt.Errorf("%w: malformed float %q", domain.ErrCanonicalization, sci)
	}
	exp, err := strconv.Atoi(expPart)
	if err != nil {
		return fmt.Errorf("%w: malformed exponent %q", domain.ErrCanonicalization, expPart)
	}
	digits := strings.Replace(mantissa, ".", "", 1)

	switch {
	case exp <= -7 || exp >= 21:
		if len(digits) == 1 {
			buf.WriteString(digits)
		} else {
			buf.WriteString(digits[:1])
			buf.WriteByte('.')
			buf.WriteString(digits[1:])
		}
		buf.WriteByte('e')
		if exp >= 0 {
			buf.WriteByte('+')
		}
		buf.WriteString(strconv.Itoa(exp))
	case exp+1 >= len(digits):
		buf.WriteString(digits)
		buf.WriteString(strings.Repeat("0", exp+1-len(digits)))
	case exp < 0:
		buf.WriteString("0.")
		buf.WriteString(strings.Repeat("0", -exp-1))
		buf.WriteString(digits)
	default:
		buf.WriteString(digits[:exp+1])
		buf.WriteByte('.')
		buf.WriteString(digits[exp+1:])
	}
	return nil
}
