// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpc provides the paperd control protocol.
package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kortschak/jsonrpc2"

	"github.com/kortschak/paperd/internal/display"
)

// Control methods.
const (
	Who   = "who"   // call Message[None] → Message[string] (version)
	Img   = "img"   // call Message[ImgParams] → Message[string]
	Clear = "clear" // call Message[ClearParams] → Message[string]
	Query = "query" // call Message[None] → Message[[]OutputState]
	Stop  = "stop"  // call or notify Message[None] → Message[string]
)

// JSON RPC error codes.
const (
	ErrCodeInvalidMessage = 1 // an RPC message is invalid
	// Invalid message sub-codes:
	ErrCodeMessageSyntax       = 11 // syntax
	ErrCodeMessageUnknownField = 12 // unknown field
	ErrCodeShortMessage        = 13 // truncation
	ErrCodeMessageType         = 14 // type mismatch
	ErrCodeMethod              = 15 // method mismatch
	ErrCodeParameters          = 16 // invalid parameters

	ErrCodeInvalidData = 3 // data sent in a call was invalid
	// Invalid data sub-codes:
	ErrCodeNoOutput = 31 // unknown output
	ErrCodeImage    = 36 // image data

	ErrCodeInternal = 4 // an internal error happened
)

// Message is the message passing container.
type Message[T any] struct {
	Time time.Time `json:"time"`
	Body T         `json:"body,omitempty"`
}

// NewMessage is a convenience Message constructor. It populates the Time
// field.
func NewMessage[T any](body T) *Message[T] {
	return &Message[T]{
		Time: time.Now(),
		Body: body,
	}
}

// ImgParams is the body of an img call. An empty Outputs list refers to
// all configured outputs and an empty Filter selects the default filter.
type ImgParams struct {
	Outputs []string `json:"outputs,omitempty"`
	Path    string   `json:"path"`
	Filter  string   `json:"filter,omitempty"`
}

// ClearParams is the body of a clear call. An empty Outputs list refers to
// all configured outputs and an empty Color is black.
type ClearParams struct {
	Outputs []string `json:"outputs,omitempty"`
	Color   string   `json:"color,omitempty"`
}

// OutputState is the state of an output returned by a query call.
type OutputState = display.State

// UnmarshalMessage is a strict equivalent of [json.Unmarshal].
func UnmarshalMessage[T any](data []byte, v *Message[T]) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err != nil {
		return &jsonrpc2.WireError{
			Code:    ErrCodeInvalidMessage,
			Message: err.Error(),
			Data:    encodeErrData(err, data),
		}
	}
	if dec.More() {
		off := dec.InputOffset()
		return &jsonrpc2.WireError{
			Code:    ErrCodeInvalidMessage,
			Message: fmt.Sprintf("invalid character "+quoteChar(data[off])+" after top-level value at offset %d", off),
			Data:    encodeErrData(&json.SyntaxError{Offset: off}, data),
		}
	}
	return nil
}

// encodeErrData return the JSON encoding for an error's extra data.
func encodeErrData(err error, data []byte) json.RawMessage {
	type extra struct {
		Type    int    `json:"type,omitempty"`
		Offset  int64  `json:"offset,omitempty"`
		Message []byte `json:"msg"`
	}
	e := extra{
		Message: data,
	}
	switch err := err.(type) {
	case nil:
		return nil
	case *json.SyntaxError:
		e.Type = ErrCodeMessageSyntax
		e.Offset = err.Offset
	case *json.UnmarshalTypeError:
		e.Type = ErrCodeMessageType
		e.Offset = err.Offset
	default:
		switch {
		case err == io.EOF, err == io.ErrUnexpectedEOF:
			e.Type = ErrCodeShortMessage
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			e.Type = ErrCodeMessageUnknownField
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.Encode(e)
	return bytes.TrimSpace(buf.Bytes())
}

// NewError returns an error that will be encoded correctly in the RPC protocol.
func NewError(code int64, message string, data any) error {
	return &jsonrpc2.WireError{
		Code:    code,
		Message: message,
		Data:    wireErrorData(data),
	}
}

func wireErrorData(data any) json.RawMessage {
	if data == nil {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(data)
	if err != nil {
		b, _ := json.Marshal("!" + err.Error())
		return b
	}
	return bytes.TrimSpace(buf.Bytes())
}

// ErrorType returns the sub-code held in the data of a wire error, or
// zero if there is none.
func ErrorType(err *jsonrpc2.WireError) int {
	var data struct {
		Type int `json:"type"`
	}
	if json.Unmarshal(err.Data, &data) != nil {
		return 0
	}
	return data.Type
}

// quoteChar formats c as a quoted character literal.
func quoteChar(c byte) string {
	// special cases - different from quoted strings
	if c == '\'' {
		return `'\''`
	}
	if c == '"' {
		return `'"'`
	}

	// use quoted string with different quotation marks
	s := strconv.Quote(string(c))
	return "'" + s[1:len(s)-1] + "'"
}

// None is an empty parameter or response slot.
type None struct{}
