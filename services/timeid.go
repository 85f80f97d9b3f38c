package services

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	timeidMu      sync.Mutex
	timeidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// GenerateTimeID returns an opaque, time-derived id that sorts
// lexicographically in chronological order. Ids generated within the same
// millisecond stay unique and ordered via monotonic entropy, which gives
// every (timeline, owner) log a total order over its entries.
func GenerateTimeID(ts time.Time) string {
	timeidMu.Lock()
	defer timeidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(ts.UTC()), timeidEntropy).String()
}

// TimeFromID recovers the timestamp a time id was generated from.
func TimeFromID(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
