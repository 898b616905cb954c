package trades

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLiquidationQuery_Window(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, time.March, 10, 14, 30, 0, 0, loc)

	tests := []struct {
		name      string
		days      int
		wantStart time.Time
	}{
		{name: "default", days: 0, wantStart: time.Date(2024, time.March, 9, 0, 0, 0, 0, loc)},
		{name: "negative", days: -4, wantStart: time.Date(2024, time.March, 9, 0, 0, 0, 0, loc)},
		{name: "one week", days: 7, wantStart: time.Date(2024, time.March, 3, 0, 0, 0, 0, loc)},
		{name: "across month", days: 30, wantStart: time.Date(2024, time.February, 9, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := LiquidationQuery{Days: tt.days, Now: now}.Window()
			assert.True(t, tt.wantStart.Equal(start), "start: got %s", start)
			assert.True(t, time.Date(2024, time.March, 10, 23, 59, 59, 0, loc).Equal(end), "end: got %s", end)
		})
	}
}

func TestLiquidationQuery_WindowDefaultsNow(t *testing.T) {
	start, end := LiquidationQuery{}.Window()
	assert.True(t, start.Before(end))
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Second())
}
