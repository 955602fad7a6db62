package atom

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAtomZeroValueClosed(t *testing.T) {
	var a Atom[int]
	require.False(t, a.Opened())
	require.ErrorIs(t, a.View(func(int) error { return nil }), ErrClosed)
	require.ErrorIs(t, a.Swap(func(v int) (int, error) { return v, nil }), ErrClosed)

	a.Close() // no-op
}

func TestAtomLoadViewSwap(t *testing.T) {
	var a Atom[int]
	a.Load(1)
	require.True(t, a.Opened())

	require.NoError(t, a.Swap(func(v int) (int, error) { return v + 1, nil }))

	var got int
	require.NoError(t, a.View(func(v int) error { got = v; return nil }))
	require.Equal(t, 2, got)

	a.Close()
	require.False(t, a.Opened())
}

func TestAtomSwapErrorKeepsState(t *testing.T) {
	var a Atom[string]
	a.Load("old")

	boom := errors.New("boom")
	err := a.Swap(func(string) (string, error) { return "new", boom })
	require.ErrorIs(t, err, boom)

	a.View(func(v string) error {
		require.Equal(t, "old", v)
		return nil
	})
}

func TestAtomSwapExcludesView(t *testing.T) {
	var a Atom[int]
	a.Load(0)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Swap(func(v int) (int, error) {
			close(entered)
			<-release
			return v + 1, nil
		})
	}()
	<-entered

	viewed := make(chan int, 1)
	go func() {
		a.View(func(v int) error {
			viewed <- v
			return nil
		})
	}()

	select {
	case <-viewed:
		t.Fatal("View ran during Swap")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	require.Equal(t, 1, <-viewed)
}
