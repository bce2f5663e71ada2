package plan

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFormatOutput(t *testing.T) {
	resp, err := Handle(newTestContext(), &Request{})
	require.NoError(t, err)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "table"))

		lines := strings.Split(buf.String(), "\n")
		assert.True(t, strings.HasPrefix(lines[0], "REGION"))
		assert.True(t, strings.HasPrefix(lines[2], "protective MBR"))
		assert.True(t, strings.HasPrefix(lines[8], "backup GPT header"))
		assert.Contains(t, buf.String(), "Usable LBAs: 34-73761")
		assert.Contains(t, buf.String(), "(73795 x 512-byte LBAs)")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "json"))

		var decoded Response
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, *resp, decoded)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "yaml"))

		var decoded Response
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, resp.Regions, decoded.Regions)
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, FormatOutput(&bytes.Buffer{}, resp, "csv"))
	})
}
