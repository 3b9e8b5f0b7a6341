package time_test

import (
	"testing"
	"time"

	pkgTime "github.com/plgd-dev/websub-hub/pkg/time"
	"github.com/stretchr/testify/require"
)

func TestLinearBackoffDelay(t *testing.T) {
	b := pkgTime.NewLinearBackoff(time.Millisecond*100, time.Millisecond*250)
	tests := []struct {
		attempt int
		min     time.Duration
	}{
		{attempt: 0, min: time.Millisecond * 100},
		{attempt: 1, min: time.Millisecond * 100},
		{attempt: 2, min: time.Millisecond * 200},
		{attempt: 3, min: time.Millisecond * 250},
		{attempt: 100, min: time.Millisecond * 250},
	}
	for _, tt := range tests {
		d := b.Delay(tt.attempt)
		require.GreaterOrEqual(t, d, tt.min)
		require.Less(t, d, tt.min+b.MinDelay)
	}
}

func TestLinearBackoffZeroDelay(t *testing.T) {
	b := pkgTime.NewLinearBackoff(0, 0)
	require.Equal(t, time.Duration(0), b.Delay(3))
}

func TestUnixNano(t *testing.T) {
	require.Equal(t, int64(0), pkgTime.UnixNano(time.Time{}))
	require.True(t, pkgTime.Unix(0, 0).IsZero())
	now := time.Now()
	require.True(t, now.Equal(pkgTime.Unix(0, pkgTime.UnixNano(now))))
}
