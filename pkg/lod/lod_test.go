package lod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/geo"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
)

func TestLevelsPyramid(t *testing.T) {
	cases := []struct {
		name     string
		min, max int
	}{
		{"single level", 5, 5},
		{"typical terrain range", 10, 16},
		{"full pyramid", 0, 22},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lods := Levels(&state.ZoomRange{Min: tc.min, Max: tc.max})
			require.Len(t, lods, tc.max-tc.min+1)

			for i, l := range lods {
				assert.Equal(t, tc.min+i, l.Level, "levels must be contiguous and ascending")

				wantRes := geo.BaseResolution / float64(uint64(1)<<uint(l.Level))
				assert.InDelta(t, wantRes, l.Resolution, 1e-9)
				assert.InDelta(t, l.Resolution*DPI*InchesPerMeter, l.Scale, 1e-6)

				if i > 0 {
					assert.Greater(t, lods[i-1].Resolution, l.Resolution,
						"resolution must decrease as level increases")
				}
			}
		})
	}
}

func TestLevelsFallback(t *testing.T) {
	lods := Levels(nil)
	require.Len(t, lods, 1)

	fb := lods[0]
	assert.Equal(t, 0, fb.Level)
	assert.InDelta(t, geo.BaseResolution/(1<<18), fb.Resolution, 1e-9)
	assert.InDelta(t, fb.Resolution*DPI*InchesPerMeter, fb.Scale, 1e-6)
	// sanity-check against the documented ballpark values
	assert.InDelta(t, 0.597, fb.Resolution, 0.001)
	assert.InDelta(t, 2257.0, fb.Scale, 1.0)
}
