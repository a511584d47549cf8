package parallel

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkers(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"explicit", 3, 3},
		{"zero means cpus", 0, runtime.NumCPU()},
		{"negative means cpus", -2, runtime.NumCPU()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Workers(tt.n))
		})
	}
}

func TestMap_PreservesOrder(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	got, err := Map(items, 4, func(i, item int) (int, error) {
		return item * item, nil
	})
	require.NoError(t, err)
	require.Len(t, got, len(items))
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}

func TestMap_Empty(t *testing.T) {
	got, err := Map([]string(nil), 0, func(int, string) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMap_LimitsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	_, err := Map(make([]struct{}, 50), 2, func(int, struct{}) (struct{}, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		runtime.Gosched()
		running.Add(-1)
		return struct{}{}, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestMap_Error(t *testing.T) {
	errBoom := errors.New("boom")
	var calls atomic.Int32

	got, err := Map(make([]int, 1000), 1, func(i, _ int) (int, error) {
		calls.Add(1)
		if i == 3 {
			return 0, errBoom
		}
		return i, nil
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, got)
	assert.Less(t, calls.Load(), int32(1000), "items after the failure should not start")
}

func TestEach_CollectsErrors(t *testing.T) {
	errOdd := errors.New("odd")
	items := []int{0, 1, 2, 3, 4}

	errs := Each(items, 0, func(i, item int) error {
		if item%2 == 1 {
			return errOdd
		}
		return nil
	})
	require.Len(t, errs, len(items))
	for i, err := range errs {
		if i%2 == 1 {
			assert.ErrorIs(t, err, errOdd)
		} else {
			assert.NoError(t, err)
		}
	}
}
