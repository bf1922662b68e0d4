package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validBar() Bar {
	return Bar{
		Symbol: "NIFTY",
		Time:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Open:   2500,
		High:   2520,
		Low:    2490,
		Close:  2510,
		Volume: 1000,
		Signal: Buy,
	}
}

func TestBarValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validBar().Validate())

	b := validBar()
	b.Symbol = ""
	assert.Error(t, b.Validate())

	b = validBar()
	b.Time = time.Time{}
	assert.Error(t, b.Validate())

	b = validBar()
	b.Low = -1
	assert.Error(t, b.Validate())

	b = validBar()
	b.Close = 2530 // above high
	assert.Error(t, b.Validate())

	b = validBar()
	b.Open = 2480 // below low
	assert.Error(t, b.Validate())

	b = validBar()
	b.Volume = -5
	assert.Error(t, b.Validate())

	b = validBar()
	b.Signal = 3
	assert.Error(t, b.Validate())
}

func TestSignalOpposes(t *testing.T) {
	t.Parallel()

	assert.True(t, Sell.Opposes(Long))
	assert.True(t, Buy.Opposes(Short))
	assert.False(t, Buy.Opposes(Long))
	assert.False(t, Sell.Opposes(Short))
	assert.False(t, Hold.Opposes(Long))
	assert.False(t, Hold.Opposes(Short))
}

func TestDirectionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "LONG", Long.String())
	assert.Equal(t, "SHORT", Short.String())
}

func TestGroupByTime(t *testing.T) {
	t.Parallel()

	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d1 := d0.AddDate(0, 0, 1)

	bars := []Bar{
		{Symbol: "A", Time: d0, Close: 100},
		{Symbol: "B", Time: d0, Close: 200},
		{Symbol: "A", Time: d1, Close: 110},
	}

	steps := GroupByTime(bars)
	assert.Len(t, steps, 2)
	assert.Len(t, steps[0].Bars, 2)
	assert.Len(t, steps[1].Bars, 1)
	assert.True(t, steps[0].Time.Equal(d0))
	assert.True(t, steps[1].Time.Equal(d1))
}

func TestGroupByTimeEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GroupByTime(nil))
}

func TestStepLookupAndCloses(t *testing.T) {
	t.Parallel()

	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	step := Step{
		Time: d0,
		Bars: []Bar{
			{Symbol: "A", Time: d0, Close: 100},
			{Symbol: "B", Time: d0, Close: 200},
		},
	}

	b, ok := step.Lookup("B")
	assert.True(t, ok)
	assert.Equal(t, 200.0, b.Close)

	_, ok = step.Lookup("C")
	assert.False(t, ok)

	closes := step.Closes()
	assert.Equal(t, map[string]float64{"A": 100, "B": 200}, closes)
}
