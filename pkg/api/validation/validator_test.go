// Caprica
// Copyright (c) 2026 The Caprica Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Caprica.
//
// Caprica is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Caprica is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Caprica.  If not, see <http://www.gnu.org/licenses/>.

//nolint:revive // custom validation tags (printable, header) are unknown to revive
package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePrintable(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Text string `json:"text" validate:"printable"`
	}

	tests := []struct {
		name      string
		text      string
		wantError bool
	}{
		{name: "empty", text: ""},
		{name: "plain", text: "RACE 1 FINAL"},
		{name: "accented", text: "Müller Čech"},
		{name: "frame end", text: "bad\x04", wantError: true},
		{name: "position escape", text: "\x100101", wantError: true},
		{name: "newline", text: "two\nlines", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(&testStruct{Text: tt.text})
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "text must not contain control characters")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHeader(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Header string `json:"header" validate:"header"`
	}

	tests := []struct {
		name      string
		header    string
		wantError bool
	}{
		{name: "empty", header: ""},
		{name: "sensor tag", header: "temperature"},
		{name: "mixed", header: "R1_lap-2.b"},
		{name: "space", header: "lap time", wantError: true},
		{name: "unicode", header: "température", wantError: true},
		{name: "too long", header: "abcdefghijklmnopqrstuvwxyz0123456", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(&testStruct{Header: tt.header})
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "header must be up to 32")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAndUnmarshal(t *testing.T) {
	t.Parallel()

	type testParams struct {
		Text string `json:"text" validate:"required,printable"`
		Tag  string `json:"tag" validate:"omitempty,oneof=temperature humidity pressure"`
		Row  int    `json:"row" validate:"min=0,max=99"`
	}

	tests := []struct {
		wantError error
		name      string
		errorMsg  string
		input     json.RawMessage
	}{
		{
			name:      "empty body returns ErrMissingParams",
			input:     nil,
			wantError: ErrMissingParams,
		},
		{
			name:      "invalid JSON returns ErrInvalidParams",
			input:     json.RawMessage(`{invalid}`),
			wantError: ErrInvalidParams,
		},
		{
			name:      "wrong type returns ErrInvalidParams",
			input:     json.RawMessage(`{"text": "x", "row": "two"}`),
			wantError: ErrInvalidParams,
		},
		{
			name:  "valid params pass validation",
			input: json.RawMessage(`{"text": "RACE 1", "row": 2}`),
		},
		{
			name:     "missing required field",
			input:    json.RawMessage(`{"row": 2}`),
			errorMsg: "text is required",
		},
		{
			name:     "invalid enum value",
			input:    json.RawMessage(`{"text": "x", "tag": "wind"}`),
			errorMsg: "tag must be one of",
		},
		{
			name:     "out of range",
			input:    json.RawMessage(`{"text": "x", "row": 100}`),
			errorMsg: "row must be at most 99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var params testParams
			err := ValidateAndUnmarshal(tt.input, &params)

			switch {
			case tt.wantError != nil:
				require.ErrorIs(t, err, tt.wantError)
			case tt.errorMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Text   string `json:"text" validate:"required"`
		Column int    `json:"col" validate:"gte=0"`
	}

	v := NewValidator()
	err := v.Validate(&testStruct{Column: -1})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "text is required")
	assert.Contains(t, err.Error(), "col must be at least 0")

	var valErr *Error
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.Fields, 2)
	assert.Equal(t, "text", valErr.Fields[0].Field)
	assert.Equal(t, "required", valErr.Fields[0].Rule)
	assert.Equal(t, "gte", valErr.Fields[1].Rule)
}

func TestErrorFormattingRules(t *testing.T) {
	t.Parallel()

	v := NewValidator()

	tests := []struct {
		structDef  any
		name       string
		wantSubstr string
	}{
		{
			name: "max on number",
			structDef: &struct {
				Row int `json:"row" validate:"max=99"`
			}{Row: 120},
			wantSubstr: "row must be at most 99",
		},
		{
			name: "max on text counts characters",
			structDef: &struct {
				Text string `json:"text" validate:"max=4"`
			}{Text: "HEAT 12"},
			wantSubstr: "text must be at most 4 characters",
		},
		{
			name: "min on text counts characters",
			structDef: &struct {
				Text string `json:"text" validate:"min=2"`
			}{Text: "a"},
			wantSubstr: "text must be at least 2 characters",
		},
		{
			name: "oneof lists the choices",
			structDef: &struct {
				Tag string `json:"tag" validate:"oneof=temperature humidity"`
			}{Tag: "wind"},
			wantSubstr: "tag must be one of: temperature, humidity",
		},
		{
			name: "unknown tag falls back to default",
			structDef: &struct {
				Value string `validate:"alphanum"`
			}{Value: "test!@#"},
			wantSubstr: "Value failed alphanum validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(tt.structDef)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSubstr)
		})
	}
}

func TestErrorOmitsValues(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Text string `json:"text" validate:"printable"`
	}

	err := NewValidator().Validate(&testStruct{Text: "secret\x04"})
	var valErr *Error
	require.ErrorAs(t, err, &valErr)

	raw, jerr := json.Marshal(valErr)
	require.NoError(t, jerr)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), `"rule":"printable"`)
}

func TestErrorEmptyFields(t *testing.T) {
	t.Parallel()

	err := &Error{Fields: []FieldError{}}
	assert.Equal(t, "validation failed", err.Error())
}
