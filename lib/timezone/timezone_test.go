package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocationIsDhaka(t *testing.T) {
	require.Equal(t, "Asia/Dhaka", Location.String())

	// Dhaka does not observe DST, the offset is a constant +6.
	_, offset := time.Date(2024, time.January, 15, 12, 0, 0, 0, Location).Zone()
	require.Equal(t, 6*60*60, offset)
	_, offset = time.Date(2024, time.July, 15, 12, 0, 0, 0, Location).Zone()
	require.Equal(t, 6*60*60, offset)
}

func TestTodayFormat(t *testing.T) {
	today := Today()
	_, err := time.ParseInLocation(time.DateOnly, today, Location)
	require.NoError(t, err)
}
