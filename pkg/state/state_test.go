package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellStartsEmpty(t *testing.T) {
	c := NewCell()
	ins := c.Current()
	require.NotNil(t, ins)
	assert.Nil(t, ins.Extent)
	assert.Nil(t, ins.Zoom)
}

func TestCellReplaceIgnoresNil(t *testing.T) {
	c := NewCell()
	bounds := [4]float64{5.5, 45.5, 11.0, 48.0}
	c.Replace(ResolveBounds(&bounds, &ZoomRange{Min: 10, Max: 16}))

	before := c.Current()
	require.NotNil(t, before.Extent)

	// a failed inspection must not wipe out the previous state
	c.Replace(nil)
	assert.Equal(t, before, c.Current())
}

func TestResolveBounds(t *testing.T) {
	bounds := [4]float64{5.5, 45.5, 11.0, 48.0}
	ins := ResolveBounds(&bounds, &ZoomRange{Min: 10, Max: 16})
	require.NotNil(t, ins)
	require.NotNil(t, ins.Extent)
	require.NotNil(t, ins.Zoom)

	e := ins.Extent
	assert.Equal(t, 3857, e.WKID)
	assert.Less(t, e.XMin, e.XMax)
	assert.Less(t, e.YMin, e.YMax)
	// both corners project through the same transform, so a square
	// degree box is wider than tall at these latitudes
	assert.InDelta(t, 612257.1993630046, e.XMin, 1e-4)

	assert.Equal(t, 10, ins.Zoom.Min)
	assert.Equal(t, 16, ins.Zoom.Max)
}

func TestResolveBoundsAbsent(t *testing.T) {
	assert.Nil(t, ResolveBounds(nil, &ZoomRange{Min: 0, Max: 5}))
}

func TestCellConcurrentReaders(t *testing.T) {
	c := NewCell()
	bounds := [4]float64{-10.0, -10.0, 10.0, 10.0}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				ins := c.Current()
				if ins.Extent != nil {
					// extent and zoom always arrive together
					assert.NotNil(t, ins.Zoom)
				}
			}
		}()
	}
	c.Replace(ResolveBounds(&bounds, &ZoomRange{Min: 0, Max: 4}))
	wg.Wait()
}
