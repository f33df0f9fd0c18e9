package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidResponse is returned when the body lacks a truthy success flag
// or a truthy result.
var ErrInvalidResponse = errors.New("invalid response format from API")

// ExtractReply decodes a run workflow response body into display text.
//
// The body must be a JSON object whose "success" and "result" members are
// truthy. A string result is returned as is, an object result yields its
// "response" member when that is truthy, and anything else falls back to the
// result rendered as JSON text.
func ExtractReply(body []byte) (string, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	resp := RunResponse{
		Success: members["success"],
		Result:  members["result"],
	}
	if !truthy(resp.Success) || !truthy(resp.Result) {
		return "", ErrInvalidResponse
	}

	var text string
	if err := json.Unmarshal(resp.Result, &text); err == nil {
		return text, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(resp.Result, &object); err == nil {
		if response := object["response"]; truthy(response) {
			if err := json.Unmarshal(response, &text); err == nil {
				return text, nil
			}
			return stringify(response), nil
		}
	}

	return stringify(resp.Result), nil
}

// truthy reports whether a JSON value would be considered true by a
// loosely typed client: null, false, 0, "" and absent values are not.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}

	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

// stringify renders a JSON value the way JSON.stringify would print the
// decoded value: compact, member order kept, numbers in their shortest form
// and no HTML escaping.
func stringify(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var buf bytes.Buffer
	if err := writeValue(dec, &buf); err != nil {
		return string(raw)
	}
	return buf.String()
}

func writeValue(dec *json.Decoder, buf *bytes.Buffer) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return writeScalar(buf, tok)
	}

	switch delim {
	case '{':
		buf.WriteByte('{')
		for i := 0; dec.More(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := dec.Token()
			if err != nil {
				return err
			}
			if err := writeScalar(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(dec, buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case '[':
		buf.WriteByte('[')
		for i := 0; dec.More(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(dec, buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unexpected delimiter %v", delim)
	}

	// closing delimiter
	_, err = dec.Token()
	return err
}

func writeScalar(buf *bytes.Buffer, tok json.Token) error {
	switch v := tok.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil || math.IsInf(f, 0) {
			// out of range numbers become Infinity, which prints as null
			buf.WriteString("null")
			return nil
		}
		if f == 0 {
			f = 0 // drop the sign of -0
		}
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		buf.Write(data)
	case string:
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return err
		}
		// Encode terminates every value with a newline
		buf.Truncate(buf.Len() - 1)
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}
