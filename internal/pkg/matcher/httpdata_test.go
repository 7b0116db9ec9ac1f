package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHTTPData(t *testing.T) {
	tests := []struct {
		name        string
		blob        string
		wantHTML    string
		wantHeaders string
	}{
		{
			name:        "object_with_header_map",
			blob:        `{"html":"<title>x</title>","headers":{"Server":"nginx","X-Powered-By":"PHP/8.1"}}`,
			wantHTML:    "<title>x</title>",
			wantHeaders: "Server: nginx\r\nX-Powered-By: PHP/8.1\r\n",
		},
		{
			name:        "header_map_keeps_document_order",
			blob:        `{"headers":{"Z":"1","A":"2"}}`,
			wantHeaders: "Z: 1\r\nA: 2\r\n",
		},
		{
			name:        "header_string_used_as_is",
			blob:        `{"headers":"Server: Apache\r\n"}`,
			wantHeaders: "Server: Apache\r\n",
		},
		{
			name:        "non_string_header_values",
			blob:        `{"headers":{"Content-Length":512,"Keep-Alive":true}}`,
			wantHeaders: "Content-Length: 512\r\nKeep-Alive: true\r\n",
		},
		{
			name:     "wrong_field_types_ignored",
			blob:     `{"html":42,"headers":["a","b"]}`,
			wantHTML: "",
		},
		{
			name: "plain_text_is_absent",
			blob: "<html><body>It works!</body></html>",
		},
		{
			name: "malformed_json_is_absent",
			blob: `{"html": "<b>`,
		},
		{
			name: "json_array_is_absent",
			blob: `["<html>"]`,
		},
		{
			name: "empty",
			blob: "   ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, headers := ParseHTTPData(tt.blob)
			assert.Equal(t, tt.wantHTML, html)
			assert.Equal(t, tt.wantHeaders, headers)
		})
	}
}

func TestSignalsText(t *testing.T) {
	s := NewSignals(nil, strPtr(`{"html":"<p>hi</p>"}`))

	_, ok := s.Text(KindBanner)
	assert.False(t, ok)
	html, ok := s.Text(KindHTML)
	assert.True(t, ok)
	assert.Equal(t, "<p>hi</p>", html)
	_, ok = s.Text(KindUnknown)
	assert.False(t, ok)
}
