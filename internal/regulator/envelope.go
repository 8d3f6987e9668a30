package regulator

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JaimeStill/einvoice/pkg/canonical"
)

// signatureTypeIssuer marks a signature made by the document issuer.
const signatureTypeIssuer = "I"

type signature struct {
	SignatureType string `json:"signatureType"`
	Value         string `json:"value"`
}

type submissionResponse struct {
	SubmissionID      string             `json:"submissionId"`
	AcceptedDocuments []acceptedDocument `json:"acceptedDocuments"`
	RejectedDocuments []rejectedDocument `json:"rejectedDocuments"`
}

type acceptedDocument struct {
	UUID       string `json:"uuid"`
	LongID     string `json:"longId"`
	InternalID string `json:"internalId"`
}

type rejectedDocument struct {
	InternalID string   `json:"internalId"`
	Error      etaError `json:"error"`
}

type etaError struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Target  string     `json:"target"`
	Details []etaError `json:"details"`
}

// reasons flattens an error and its details into readable lines.
func (e etaError) reasons() []string {
	var out []string
	if line := e.line(); line != "" {
		out = append(out, line)
	}
	for _, d := range e.Details {
		out = append(out, d.reasons()...)
	}
	return out
}

func (e etaError) line() string {
	var parts []string
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Target != "" {
		parts = append(parts, e.Target)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}

// buildEnvelope wraps a single signed document in a submission envelope.
// Members are copied byte for byte so the payload's key order, and with it
// the canonical form that was signed, is preserved. A top-level signatures
// member in the payload is replaced by sig.
func buildEnvelope(payload []byte, sig []byte) ([]byte, error) {
	members, err := topLevelMembers(payload)
	if err != nil {
		return nil, err
	}

	sigs, err := json.Marshal([]signature{{
		SignatureType: signatureTypeIssuer,
		Value:         base64.StdEncoding.EncodeToString(sig),
	}})
	if err != nil {
		return nil, fmt.Errorf("encode signatures: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"documents":[{`)
	for _, m := range members {
		if strings.EqualFold(m.name, canonical.SignaturesKey) {
			continue
		}
		buf.Write(m.key)
		buf.WriteByte(':')
		buf.Write(m.value)
		buf.WriteByte(',')
	}
	buf.WriteString(`"signatures":`)
	buf.Write(sigs)
	buf.WriteString(`}]}`)
	return buf.Bytes(), nil
}

type member struct {
	name  string
	key   []byte
	value json.RawMessage
}

// topLevelMembers splits a JSON object into its members in document order,
// keeping each quoted key and value exactly as written.
func topLevelMembers(payload []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, errors.New("payload is not a JSON object")
	}

	var out []member
	for dec.More() {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read payload key: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, errors.New("payload key is not a string")
		}
		key := bytes.TrimLeft(payload[start:dec.InputOffset()], " \t\r\n,")

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("read payload value %q: %w", name, err)
		}
		out = append(out, member{name: name, key: key, value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read payload end: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("payload has trailing data")
	}
	return out, nil
}
