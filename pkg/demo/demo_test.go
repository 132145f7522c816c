package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

func TestSource_StaysInRange(t *testing.T) {
	d := New(1)
	for i := 0; i < 2000; i++ {
		s := d.Sample(time.Now())
		require.True(t, s.Demo)
		for _, p := range models.Params {
			v, ok := s.Get(p.ID)
			require.True(t, ok, "%s", p.ID)
			assert.GreaterOrEqual(t, v, p.MinValue, "%s", p.ID)
			assert.LessOrEqual(t, v, p.MaxValue, "%s", p.ID)
		}
	}
}

func TestSource_Deterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 50; i++ {
		va, err := a.Query(context.Background(), models.ParamRPM)
		require.NoError(t, err)
		vb, err := b.Query(context.Background(), models.ParamRPM)
		require.NoError(t, err)
		assert.Equal(t, va, vb)
	}

	c := New(43)
	same := true
	for i := 0; i < 10; i++ {
		va, _ := a.Next(models.ParamMAF)
		vc, _ := c.Next(models.ParamMAF)
		same = same && va == vc
	}
	assert.False(t, same)
}

func TestSource_SamplesHaveDefinedVE(t *testing.T) {
	d := New(7)
	for i := 0; i < 100; i++ {
		r := ve.FromSample(d.Sample(time.Now()), 8)
		assert.True(t, r.OK)
	}
}

func TestSource_UnknownParam(t *testing.T) {
	d := New(1)
	_, err := d.Query(context.Background(), models.ParamID("Boost"))
	assert.Error(t, err)
	assert.True(t, d.Connected())
	assert.NoError(t, d.Close())
}
