// Package canonical produces the ETA canonical serialization of a JSON document.
//
// Property names are upper-cased and quoted, scalar values are quoted verbatim in
// source order, and every array element is prefixed by the array's property name.
// The top-level "signatures" property is excluded so a document can be re-serialized
// after it has been signed.
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNotObject indicates the input is not a JSON object.
	ErrNotObject = errors.New("canonical: document must be a JSON object")
	// ErrTrailingData indicates content after the top-level object.
	ErrTrailingData = errors.New("canonical: trailing data after document")
)

// SignaturesKey is the top-level property that carries document signatures.
const SignaturesKey = "signatures"

// Serialize returns the canonical form of the JSON object in data.
func Serialize(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}

	var buf bytes.Buffer
	if err := writeObject(dec, &buf, true); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}

	return buf.Bytes(), nil
}

func writeObject(dec *json.Decoder, buf *bytes.Buffer, top bool) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("canonical: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("canonical: unexpected token %v", tok)
		}

		if top && strings.EqualFold(key, SignaturesKey) {
			if err := skipValue(dec); err != nil {
				return err
			}
			continue
		}

		name := strings.ToUpper(key)
		val, err := dec.Token()
		if err != nil {
			return fmt.Errorf("canonical: %w", err)
		}

		if d, ok := val.(json.Delim); ok && d == '[' {
			writeQuoted(buf, name)
			if err := writeArray(dec, buf, name); err != nil {
				return err
			}
			continue
		}

		writeQuoted(buf, name)
		if err := writeValue(dec, buf, val); err != nil {
			return err
		}
	}

	return closing(dec)
}

func writeArray(dec *json.Decoder, buf *bytes.Buffer, name string) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("canonical: %w", err)
		}
		writeQuoted(buf, name)
		if err := writeValue(dec, buf, tok); err != nil {
			return err
		}
	}
	return closing(dec)
}

func writeValue(dec *json.Decoder, buf *bytes.Buffer, tok json.Token) error {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return writeObject(dec, buf, false)
		case '[':
			// nested arrays carry no property name of their own
			for dec.More() {
				inner, err := dec.Token()
				if err != nil {
					return fmt.Errorf("canonical: %w", err)
				}
				if err := writeValue(dec, buf, inner); err != nil {
					return err
				}
			}
			return closing(dec)
		}
		return fmt.Errorf("canonical: unexpected delimiter %v", v)
	case string:
		writeQuoted(buf, v)
	case json.Number:
		writeQuoted(buf, v.String())
	case bool:
		if v {
			writeQuoted(buf, "true")
		} else {
			writeQuoted(buf, "false")
		}
	case nil:
		writeQuoted(buf, "")
	default:
		return fmt.Errorf("canonical: unexpected token %v", tok)
	}
	return nil
}

func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("canonical: %w", err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth == 0 {
			return nil
		}
	}
}

func closing(dec *json.Decoder) error {
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("canonical: %w", err)
	}
	return nil
}

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(s[i])
	}
	buf.WriteByte('"')
}
