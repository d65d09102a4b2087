package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize encodes v as canonical JSON: NFC-normalized strings, sorted
// object keys, shortest round-trip float form, no insignificant whitespace.
// Two equal values always produce identical bytes, which makes the output
// usable as a digest input for audit record IDs.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DigestWithPrefix returns the SHA-256 digest of data with the "sha256:" prefix.
func DigestWithPrefix(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if value {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeString(buf, value)
	case int:
		buf.WriteString(strconv.FormatInt(int64(value), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(value, 10))
	case float64:
		if value == float64(int64(value)) {
			buf.WriteString(strconv.FormatInt(int64(value), 10))
			return nil
		}
		buf.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	case json.Number:
		buf.WriteString(value.String())
	case map[string]any:
		return writeMap(buf, value)
	case []any:
		return writeSlice(buf, value)
	case []string:
		converted := make([]any, len(value))
		for i, s := range value {
			converted[i] = s
		}
		return writeSlice(buf, converted)
	default:
		return fmt.Errorf("canon: unsupported type %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

func writeMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, norm.NFC.String(key))
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, m[key]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeSlice(buf *bytes.Buffer, values []any) error {
	buf.WriteByte('[')
	for i, value := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, value); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}
