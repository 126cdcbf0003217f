package helpers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name  string `header:"NAME" json:"name"`
	Value int    `header:"VALUE" json:"value"`
	Extra string `json:"-"`
}

func TestNewFormatter(t *testing.T) {
	for _, f := range SupportedFormats {
		got, err := NewFormatter(f)
		require.NoError(t, err, f)
		assert.NotNil(t, got)
	}

	_, err := NewFormatter(OutputFormat("yaml"))
	assert.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := []*row{{Name: "GET /items", Value: 12, Extra: "hidden"}, {Name: "job", Value: 3}}

	require.NoError(t, (&TableFormatter{}).Format(data, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"NAME", "VALUE"}, strings.Fields(lines[0]))
	assert.Contains(t, lines[1], "GET /items")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestTableFormatter_EmptyAndInvalid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format([]row{}, &buf))
	assert.Empty(t, buf.String())

	assert.Error(t, (&TableFormatter{}).Format(row{}, &buf))
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVFormatter{}).Format([]row{{Name: "a,b", Value: 1}}, &buf))
	assert.Equal(t, "NAME,VALUE\n\"a,b\",1\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format([]row{{Name: "a", Value: 1}}, &buf))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []map[string]any{{"name": "a", "value": float64(1)}}, got)
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, ValidateFormat("json", SupportedFormats))
	assert.ErrorContains(t, ValidateFormat("xml", SupportedFormats), "table, json, csv")
}
