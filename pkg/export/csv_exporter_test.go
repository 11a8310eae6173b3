package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Name", "Status"},
		Rows: []map[string]string{
			{"Name": "Ana Lima", "Status": "present"},
			{"Name": "Ben Cho"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Name,Status\nAna Lima,present\nBen Cho,\n", string(out))
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})

	require.Error(t, err)
}
