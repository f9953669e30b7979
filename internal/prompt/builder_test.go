package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	msgs, err := Build("[source: termsheet] [page: 1] [chunk_idx: 1]\nISIN: XS1", "Extract the ISIN.", json.RawMessage(`{"ISIN":"","Issuer":""}`))
	require.NoError(t, err)

	assert.Equal(t, SystemMessage, msgs.System)
	want := "CONTEXT:\n\n[source: termsheet] [page: 1] [chunk_idx: 1]\nISIN: XS1\n\n" +
		"INSTRUCTION:\n\nExtract the ISIN.\n\n" +
		"OUTPUT_SCHEMA / EXAMPLE:\n\n{\n  \"ISIN\": \"\",\n  \"Issuer\": \"\"\n}\n\n" +
		"Return ONLY the JSON (no extra commentary)."
	assert.Equal(t, want, msgs.User)
}

func TestBuild_SectionOrder(t *testing.T) {
	msgs, err := Build("ctx", "instr", json.RawMessage(`[1,2]`))
	require.NoError(t, err)
	c := strings.Index(msgs.User, "CONTEXT:")
	i := strings.Index(msgs.User, "INSTRUCTION:")
	s := strings.Index(msgs.User, "OUTPUT_SCHEMA / EXAMPLE:")
	assert.True(t, c < i && i < s)
	assert.True(t, strings.HasSuffix(msgs.User, "Return ONLY the JSON (no extra commentary)."))
}

func TestBuild_InvalidSchema(t *testing.T) {
	_, err := Build("ctx", "instr", json.RawMessage(`{"ISIN":`))
	assert.Error(t, err)
}

func TestIndent_Empty(t *testing.T) {
	s, err := Indent(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)
}
