package slotlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeometry(t *testing.T) {
	geo := Geometry{Offset: 0x1F0000, Size: 0x10000, PageSize: 256, SectorSize: 4096, EntryPages: 2}
	require.NoError(t, geo.Validate(true))
	require.EqualValues(t, 512, geo.EntrySize())
	require.EqualValues(t, 16, geo.Sectors())
	require.EqualValues(t, 128, geo.Slots())
	require.Equal(t, 500, geo.PayloadSize(true))
	require.Equal(t, 504, geo.PayloadSize(false))
}

func TestGeometryInvalid(t *testing.T) {
	valid := Geometry{Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1}
	for name, mutate := range map[string]func(*Geometry){
		"zero page":        func(g *Geometry) { g.PageSize = 0 },
		"zero sector":      func(g *Geometry) { g.SectorSize = 0 },
		"zero entry":       func(g *Geometry) { g.EntryPages = 0 },
		"sector not pages": func(g *Geometry) { g.SectorSize = 4000 },
		"size not sectors": func(g *Geometry) { g.Size = 8000 },
		"one sector":       func(g *Geometry) { g.Size = 4096 },
		"unaligned offset": func(g *Geometry) { g.Offset = 256 },
		"past 4 GiB":       func(g *Geometry) { g.Offset = 0xFFFFF000 },
		"entry too big":    func(g *Geometry) { g.EntryPages = 33 },
		"no payload":       func(g *Geometry) { g.PageSize, g.SectorSize, g.EntryPages = 4, 4096, 2 },
	} {
		t.Run(name, func(t *testing.T) {
			geo := valid
			mutate(&geo)
			require.ErrorIs(t, geo.Validate(true), ErrInvalidGeometry)
		})
	}

	// 8 bytes leave no payload for the tagged layout only
	geo := valid
	geo.PageSize, geo.EntryPages = 4, 3
	require.ErrorIs(t, geo.Validate(true), ErrInvalidGeometry)
	require.NoError(t, geo.Validate(false))
}

func TestTag(t *testing.T) {
	tag, err := MakeTag("conf")
	require.NoError(t, err)
	require.Equal(t, Tag{'c', 'o', 'n', 'f'}, tag)
	require.Equal(t, "conf", tag.String())
	require.False(t, tag.Erased())

	_, err = MakeTag("config")
	require.ErrorIs(t, err, ErrInvalidTag)
	_, err = MakeTag("\xff\xff\xff\xff")
	require.ErrorIs(t, err, ErrInvalidTag)
	require.True(t, Tag{0xFF, 0xFF, 0xFF, 0xFF}.Erased())

	require.Equal(t, "0x00ff0102", Tag{0, 0xFF, 1, 2}.String())
	require.Panics(t, func() { MustTag("x") })
}

func TestDirect(t *testing.T) {
	var called bool
	require.NoError(t, Direct.Run(func() error {
		called = true
		return nil
	}))
	require.True(t, called)
	require.ErrorIs(t, Direct.Run(func() error { return ErrClosed }), ErrClosed)
}
