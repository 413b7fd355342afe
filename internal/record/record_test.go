package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithoutRawClears(t *testing.T) {
	r := Record{
		TsMs: 1,
		Key:  "X",
		Value: map[string]any{"v": 1},
		Raw:  &Raw{Bytes: []byte(`{"v":1}`), Format: FormatJSON},
	}
	stripped := r.WithoutRaw()
	require.Nil(t, stripped.Raw)
	require.NotNil(t, r.Raw, "original record must be unaffected")
}
