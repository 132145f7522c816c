// Package table buckets VE readings into an RPM x MAP grid and classifies
// each cell into a severity band.
package table

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

// Axis is a fixed-width discretisation of one table dimension
type Axis struct {
	Start float64 `mapstructure:"start" json:"start"`
	Step  float64 `mapstructure:"step" json:"step"`
	Count int     `mapstructure:"count" json:"count"`
}

// Default axes: 400-8000 RPM in 400 RPM steps, 15-105 kPa in 5 kPa steps
var (
	DefaultRPMAxis = Axis{Start: 400, Step: 400, Count: 20}
	DefaultMAPAxis = Axis{Start: 15, Step: 5, Count: 19}
)

// Validate checks that the axis describes at least one bucket
func (a Axis) Validate() error {
	if a.Count <= 0 {
		return fmt.Errorf("axis count must be positive, got %d", a.Count)
	}
	if a.Step <= 0 || math.IsNaN(a.Step) || math.IsInf(a.Step, 0) {
		return fmt.Errorf("axis step must be positive, got %v", a.Step)
	}
	return nil
}

// Index returns the bucket nearest to v, clamped to the axis ends
func (a Axis) Index(v float64) int {
	if a.Count <= 1 || a.Step <= 0 || math.IsNaN(v) {
		return 0
	}
	i := int(math.Round((v - a.Start) / a.Step))
	if i < 0 {
		return 0
	}
	if i >= a.Count {
		return a.Count - 1
	}
	return i
}

// Value returns the axis value at bucket i
func (a Axis) Value(i int) float64 {
	return a.Start + float64(i)*a.Step
}

// Values lists every axis value in order
func (a Axis) Values() []float64 {
	out := make([]float64, a.Count)
	for i := range out {
		out[i] = a.Value(i)
	}
	return out
}

// Key identifies a table cell
type Key struct {
	RPM int `json:"rpm"` // column index on the RPM axis
	MAP int `json:"map"` // row index on the MAP axis
}

// BucketKey maps an (rpm, map) pair to its cell
func BucketKey(rpm, mapKPa float64, rpmAxis, mapAxis Axis) Key {
	return Key{RPM: rpmAxis.Index(rpm), MAP: mapAxis.Index(mapKPa)}
}

// Cell holds the most recent VE observed for a bucket
type Cell struct {
	Key       Key         `json:"key"`
	RPM       float64     `json:"rpm"`
	MAP       float64     `json:"map"`
	VE        float64     `json:"ve"`
	Band      models.Band `json:"band"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Table is the VE grid. It is not safe for concurrent use; callers
// serialise access.
type Table struct {
	RPMAxis Axis
	MAPAxis Axis

	cells   map[Key]Cell
	current *Key
}

// New creates an empty table over the given axes
func New(rpmAxis, mapAxis Axis) *Table {
	return &Table{
		RPMAxis: rpmAxis,
		MAPAxis: mapAxis,
		cells:   make(map[Key]Cell),
	}
}

// Update overwrites the cell for (rpm, map) with ve and its band
func (t *Table) Update(rpm, mapKPa, ve float64, cylinders int, at time.Time) Cell {
	key := BucketKey(rpm, mapKPa, t.RPMAxis, t.MAPAxis)
	cell := Cell{
		Key:       key,
		RPM:       t.RPMAxis.Value(key.RPM),
		MAP:       t.MAPAxis.Value(key.MAP),
		VE:        ve,
		Band:      Classify(ve, cylinders),
		UpdatedAt: at,
	}
	t.cells[key] = cell
	t.current = &key
	return cell
}

// Get returns the cell at key
func (t *Table) Get(key Key) (Cell, bool) {
	c, ok := t.cells[key]
	return c, ok
}

// Current returns the key of the most recently updated cell
func (t *Table) Current() (Key, bool) {
	if t.current == nil {
		return Key{}, false
	}
	return *t.current, true
}

// Len returns the number of filled cells
func (t *Table) Len() int {
	return len(t.cells)
}

// Cells returns the filled cells ordered by MAP row then RPM column
func (t *Table) Cells() []Cell {
	out := make([]Cell, 0, len(t.cells))
	for _, c := range t.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.MAP != out[j].Key.MAP {
			return out[i].Key.MAP < out[j].Key.MAP
		}
		return out[i].Key.RPM < out[j].Key.RPM
	})
	return out
}

// Clone returns an independent copy of the table
func (t *Table) Clone() *Table {
	c := New(t.RPMAxis, t.MAPAxis)
	for k, v := range t.cells {
		c.cells[k] = v
	}
	if t.current != nil {
		k := *t.current
		c.current = &k
	}
	return c
}

// Clear empties every cell
func (t *Table) Clear() {
	t.cells = make(map[Key]Cell)
	t.current = nil
}

// Grid returns the table as [map row][rpm col] with NaN for empty cells
func (t *Table) Grid() [][]float64 {
	grid := make([][]float64, t.MAPAxis.Count)
	for i := range grid {
		grid[i] = make([]float64, t.RPMAxis.Count)
		for j := range grid[i] {
			grid[i][j] = math.NaN()
		}
	}
	for k, c := range t.cells {
		grid[k.MAP][k.RPM] = c.VE
	}
	return grid
}
