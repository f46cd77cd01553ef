package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateScan(t *testing.T) {
	for name, src := range map[string]any{
		"text":      "2026-10-14",
		"bytes":     []byte("2026-10-14"),
		"timestamp": "2026-10-14T00:00:00Z",
		"time":      time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
	} {
		var d Date
		require.NoError(t, d.Scan(src), name)
		assert.Equal(t, Date("2026-10-14"), d, name)
	}

	var d Date
	assert.Error(t, d.Scan(42))
}

func TestDateOfUsesUTC(t *testing.T) {
	late := time.Date(2026, 10, 14, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, Date("2026-10-15"), DateOf(late))
}
