package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHighWaterMapMonotonic(t *testing.T) {
	m := newHighWaterMap()
	require.Equal(t, 0, m.Get("g1"), "first reference defaults to 0")

	m.Observe("g1", 3)
	require.Equal(t, 3, m.Get("g1"))

	m.Observe("g1", 1)
	require.Equal(t, 3, m.Get("g1"), "never decreases")

	require.Equal(t, 0, m.Get("g2"), "groups are independent")
}

func TestHighWaterMapConcurrentObserve(t *testing.T) {
	m := newHighWaterMap()
	var wg sync.WaitGroup
	for i := 1; i <= 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Observe("g1", n)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 64, m.Get("g1"))
}
