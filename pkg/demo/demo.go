// Package demo generates simulated parameter values when no adapter is
// connected.
package demo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

// stepFraction is the largest move per read as a share of the range
const stepFraction = 0.05

// Source is a bounded random walk per parameter. The same seed always
// produces the same sequence.
type Source struct {
	mu     sync.Mutex
	rng    *rand.Rand
	values map[models.ParamID]float64
}

// New creates a demo source. Every walk starts at the middle of its range.
func New(seed int64) *Source {
	values := make(map[models.ParamID]float64, len(models.Params))
	for _, p := range models.Params {
		values[p.ID] = (p.MinValue + p.MaxValue) / 2
	}
	return &Source{
		rng:    rand.New(rand.NewSource(seed)),
		values: values,
	}
}

// Next advances the walk for id and returns the new value
func (d *Source) Next(id models.ParamID) (float64, error) {
	p, ok := models.ParamByID(id)
	if !ok {
		return 0, fmt.Errorf("unknown parameter %q", id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	span := p.MaxValue - p.MinValue
	v := d.values[id] + (d.rng.Float64()*2-1)*stepFraction*span
	if v < p.MinValue {
		v = p.MinValue
	}
	if v > p.MaxValue {
		v = p.MaxValue
	}
	d.values[id] = v
	return v, nil
}

// Query implements the poller's source interface
func (d *Source) Query(_ context.Context, id models.ParamID) (float64, error) {
	return d.Next(id)
}

// Connected is always true for the simulator
func (d *Source) Connected() bool {
	return true
}

// Close does nothing
func (d *Source) Close() error {
	return nil
}

// Sample draws one value for every parameter
func (d *Source) Sample(at time.Time) models.Sample {
	values := make(map[models.ParamID]models.Reading, len(models.Params))
	for _, p := range models.Params {
		v, err := d.Next(p.ID)
		values[p.ID] = models.Reading{Value: v, OK: err == nil}
	}
	return models.NewSample(at, values, true)
}
