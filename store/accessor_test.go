package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/slotlog"
)

type settings struct {
	Brightness uint8
	Mode       uint8
	Speed      uint16
	Color      [3]uint8
	Enabled    bool
}

func TestAccessor(t *testing.T) {
	flash := newFlash(twoSectors)
	s, _ := openStore(t, flash, Options{Region: twoSectors}, conf, cal1)

	acc, err := NewAccessor[settings](s.Type(0))
	require.NoError(t, err, "NewAccessor")

	_, err = acc.Load()
	require.ErrorIs(t, err, slotlog.ErrNoRecord)

	want := settings{Brightness: 200, Mode: 3, Speed: 0x1234, Color: [3]uint8{255, 128, 0}, Enabled: true}
	require.NoError(t, acc.Save(want))

	got, err := acc.Load()
	require.NoError(t, err)
	require.Equal(t, want, got)

	// little-endian layout
	raw := make([]byte, 4)
	require.NoError(t, s.Load(0, raw))
	require.Equal(t, []byte{200, 3, 0x34, 0x12}, raw)
}

func TestAccessorSingle(t *testing.T) {
	var s Single[Flash]
	_, err := s.Open(newFlash(twoSectors), Options{Region: twoSectors})
	require.NoError(t, err)

	acc, err := NewAccessor[uint64](&s)
	require.NoError(t, err)
	require.NoError(t, acc.Save(42))
	require.NoError(t, acc.Save(43))
	v, err := acc.Load()
	require.NoError(t, err)
	require.EqualValues(t, 43, v)
}

func TestAccessorSize(t *testing.T) {
	s, _ := openStore(t, newFlash(twoSectors), Options{Region: twoSectors}, conf)

	_, err := NewAccessor[[245]byte](s.Type(0))
	require.ErrorIs(t, err, slotlog.ErrTooLarge)

	_, err = NewAccessor[[244]byte](s.Type(0))
	require.NoError(t, err)

	_, err = NewAccessor[struct{ Name string }](s.Type(0))
	require.Error(t, err, "no fixed size")
}
