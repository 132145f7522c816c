package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/obd-ve-monitor/pkg/clock"
	"github.com/tosih/obd-ve-monitor/pkg/config"
	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/poller"
)

func TestApply_File(t *testing.T) {
	f := NewFile(config.Default())

	require.NoError(t, Apply(f, Change{O2Mode: "phi", Cylinders: 4}))
	assert.Equal(t, "equivalence", f.Config().O2Mode)
	assert.Equal(t, 4, f.Config().Cylinders)

	require.NoError(t, Apply(f, Change{}))
	assert.Equal(t, 4, f.Config().Cylinders)
}

func TestApply_Invalid(t *testing.T) {
	f := NewFile(config.Default())

	assert.Error(t, Apply(f, Change{O2Mode: "afr", Cylinders: 6}))
	assert.Error(t, Apply(f, Change{Cylinders: -2, O2Mode: "voltage"}))
	assert.Equal(t, 8, f.Config().Cylinders, "nothing applied")
	assert.Equal(t, "lambda", f.Config().O2Mode)

	assert.Error(t, Apply(f, Change{ClearLog: true}), "a file has no session data")
}

func TestApply_Poller(t *testing.T) {
	clk := clock.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := poller.New(config.Default(), clk)
	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		p.Tick(context.Background())
	}
	require.NotZero(t, p.Table().Len())

	require.NoError(t, Apply(p, Change{O2Mode: "voltage", ClearTable: true}))
	assert.Equal(t, models.O2Voltage, p.O2Mode())
	assert.Zero(t, p.Table().Len())
	assert.Equal(t, 3, p.LogLen())

	require.NoError(t, Apply(p, Change{ClearLog: true, Cylinders: 6}))
	assert.Zero(t, p.LogLen())
	assert.Equal(t, 6, p.Config().Cylinders)
}

func TestChange_Empty(t *testing.T) {
	assert.True(t, Change{}.Empty())
	assert.False(t, Change{ClearLog: true}.Empty())
}
