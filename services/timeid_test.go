package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateTimeIDLexicographicOrder(t *testing.T) {
	base := time.Now()
	var prev string
	for i := 0; i < 100; i++ {
		id := GenerateTimeID(base.Add(time.Duration(i) * time.Millisecond))
		require.Len(t, id, 26)
		if prev != "" {
			require.Greater(t, id, prev, "ids must sort by generation time")
		}
		prev = id
	}
}

func TestGenerateTimeIDMonotonicWithinMillisecond(t *testing.T) {
	ts := time.Now()
	first := GenerateTimeID(ts)
	second := GenerateTimeID(ts)
	require.NotEqual(t, first, second)
	require.Greater(t, second, first, "same-timestamp ids must stay ordered")
}

func TestTimeFromIDRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 15, 12, 30, 45, 0, time.UTC)
	id := GenerateTimeID(ts)

	parsed, err := TimeFromID(id)
	require.NoError(t, err)
	require.Equal(t, ts.UnixMilli(), parsed.UnixMilli())
}

func TestTimeFromIDRejectsGarbage(t *testing.T) {
	_, err := TimeFromID("not-a-time-id")
	require.Error(t, err)
}
