package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_IsByteExact(t *testing.T) {
	in := "PROMPT_X\nline two\n  indented — ümlaut"
	assert.Equal(t, []byte(in), Text(in))
}

func TestPDF(t *testing.T) {
	tests := map[string]string{
		"short":     "PROMPT_X",
		"multiline": "Objective:\n- one\n- two\n\nDeliverables",
		"long":      strings.Repeat("a very long line of generated requirements ", 400),
		"non-latin": "Café résumé 密码",
		"empty":     "",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := PDF(text)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "output must be a PDF document")
			assert.True(t, bytes.Contains(out, []byte("%%EOF")), "output must be a complete PDF document")
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("txt")
	assert.True(t, ok)
	assert.Equal(t, "output.txt", f.Filename())
	assert.Equal(t, "text/plain; charset=utf-8", f.ContentType())

	f, ok = ParseFormat("pdf")
	assert.True(t, ok)
	assert.Equal(t, "output.pdf", f.Filename())
	assert.Equal(t, "application/pdf", f.ContentType())

	_, ok = ParseFormat("docx")
	assert.False(t, ok)
}

func TestRender(t *testing.T) {
	out, err := Render(FormatText, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))

	_, err = Render(Format("docx"), "hi")
	assert.Error(t, err)
}
