// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package envelope serializes operation outcomes into the uniform payload
// returned for every dispatch. Success and error payloads share one text
// channel; error payloads always start with ErrorMarker.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"
)

// ErrorMarker prefixes every error payload.
const ErrorMarker = "Error: "

// Status is the semantic outcome of a dispatch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Envelope is the response returned for every dispatch. Results always holds
// the encoded text payload; Metadata is optional.
type Envelope struct {
	Status   Status         `json:"status" enum:"success,error" doc:"Outcome of the call"`
	Results  string         `json:"results" doc:"Encoded result text, prefixed with 'Error: ' on failure"`
	Metadata map[string]any `json:"metadata,omitempty" doc:"Optional call metadata"`
}

// Success wraps value as a successful envelope.
func Success(value any) Envelope {
	return Envelope{Status: StatusSuccess, Results: Encode(value)}
}

// Failure wraps err as an error envelope carrying its textual description.
func Failure(err error) Envelope {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Envelope{Status: StatusError, Results: EncodeError(msg)}
}

// IsError reports whether the envelope carries a failure.
func (e Envelope) IsError() bool {
	return e.Status == StatusError
}

// WithMetadata returns a copy of e with the given metadata key set.
func (e Envelope) WithMetadata(key string, value any) Envelope {
	meta := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	e.Metadata = meta
	return e
}

// Encode renders value as response text. Text that parses as a single JSON
// document is re-serialized pretty-printed; other text is returned as-is.
// Non-text values are normalized (see Normalize) and marshalled pretty.
func Encode(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return encodeText(v)
	case []byte:
		return encodeText(string(v))
	case json.RawMessage:
		return encodeText(string(v))
	}

	out, err := marshalPretty(Normalize(value))
	if err != nil {
		return fmt.Sprint(value)
	}
	return out
}

// EncodeError renders message as an error payload.
func EncodeError(message string) string {
	return Encode(ErrorMarker + message)
}

func encodeText(text string) string {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return text
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		// Trailing content after the first document: not JSON text.
		return text
	}

	out, err := marshalPretty(parsed)
	if err != nil {
		return text
	}
	return out
}

func marshalPretty(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Normalize converts warehouse-native values into JSON-friendly ones:
// temporal values become ISO-8601 strings, fixed-point numerics become
// float64 and raw bytes become strings. Maps and slices are walked.
func Normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339Nano)
	case *big.Rat:
		if t == nil {
			return nil
		}
		f, _ := t.Float64()
		return f
	case *big.Float:
		if t == nil {
			return nil
		}
		f, _ := t.Float64()
		return f
	case []byte:
		return string(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}

// document is the handler-level response layout. Field order is the
// serialized key order.
type document struct {
	Status   Status         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Results  any            `json:"results"`
}

// Response builds the standard handler document
// {"status":"success","metadata":...,"results":...} as compact JSON text.
func Response(data any, metadata map[string]any) (string, error) {
	doc := document{
		Status:  StatusSuccess,
		Results: Normalize(data),
	}
	if len(metadata) > 0 {
		doc.Metadata = Normalize(metadata).(map[string]any)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encoding response: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
