package region

import (
	"slices"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/dacapoday/slotlog"
	"github.com/dacapoday/slotlog/mem"
)

func testRegion(t *testing.T, geo Geometry) (*Region[*mem.Flash], *mem.Flash) {
	t.Helper()
	flash := mem.New(int64(geo.Offset+geo.Size), int64(geo.PageSize), int64(geo.SectorSize))
	region, err := New(flash, geo, nil)
	require.NoError(t, err, "region.New")
	return region, flash
}

func TestRegionGeometry(t *testing.T) {
	_, err := New(mem.New(4096, 256, 4096), Geometry{Size: 4096, PageSize: 256, SectorSize: 4096, EntryPages: 1}, nil)
	require.ErrorIs(t, err, slotlog.ErrInvalidGeometry, "single sector")

	region, _ := testRegion(t, Geometry{Offset: 4096, Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 2})
	require.EqualValues(t, 512, region.EntrySize())
	require.EqualValues(t, 8192+4096, region.Absolute(8192))
}

func TestRegionAdvance(t *testing.T) {
	region, _ := testRegion(t, Geometry{Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1})
	require.EqualValues(t, 256, region.Advance(0))
	require.EqualValues(t, 7936, region.Advance(7680))
	require.EqualValues(t, 0, region.Advance(7936), "wrap at end")

	// 3-page slots leave a 512-byte tail that never holds a slot.
	region, _ = testRegion(t, Geometry{Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 3})
	require.EqualValues(t, 7680-768, region.Advance(7680-768*2))
	require.EqualValues(t, 0, region.Advance(7680-768), "tail too short")
	require.Len(t, slices.Collect(region.Slots()), 10)
}

func TestRegionSectors(t *testing.T) {
	region, _ := testRegion(t, Geometry{Size: 3 * 4096, PageSize: 256, SectorSize: 4096, EntryPages: 3})
	require.EqualValues(t, 0, region.SectorOf(4095))
	require.EqualValues(t, 1, region.SectorOf(4096))
	require.True(t, region.Overlaps(3840, 0))
	require.True(t, region.Overlaps(3840, 1), "slot straddles sector boundary")
	require.False(t, region.Overlaps(3840, 2))

	require.EqualValues(t, 4608, region.NextSector(100), "first slot start past sector 1")
	require.EqualValues(t, 0, region.NextSector(9000), "wrap past last sector")

	pages := slices.Collect(region.Pages(768))
	require.Equal(t, []uint32{768, 1024, 1280}, pages)
	require.Len(t, slices.Collect(region.Slots()), 16)
}

func TestRegionReadWrite(t *testing.T) {
	region, flash := testRegion(t, Geometry{Offset: 4096, Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1})

	page := make([]byte, 256)
	for i := range page {
		page[i] = byte(i)
	}
	require.NoError(t, region.ProgramPage(page, 256), "region.ProgramPage")

	got := make([]byte, 256)
	require.NoError(t, region.ReadAt(got, 256), "region.ReadAt")
	require.Equal(t, page, got)

	raw := make([]byte, 256)
	_, err := flash.ReadAt(raw, 4096+256)
	require.NoError(t, err)
	require.Equal(t, page, raw, "region offset applied")

	require.ErrorIs(t, region.ReadAt(got, 8192-100), slotlog.ErrOutOfRange)
	require.ErrorIs(t, region.ProgramPage(page, 100), slotlog.ErrOutOfRange)
	require.ErrorIs(t, region.ProgramPage(page[:10], 0), slotlog.ErrOutOfRange)
	require.ErrorIs(t, region.EraseSector(2), slotlog.ErrOutOfRange)

	require.NoError(t, region.EraseSector(0), "region.EraseSector")
	require.NoError(t, region.ReadAt(got, 256))
	require.Equal(t, slices.Repeat([]byte{0xFF}, 256), got)
	require.EqualValues(t, 1, flash.EraseCount(4096))
	require.EqualValues(t, 0, flash.EraseCount(0), "outside region")
}

func TestRegionFaults(t *testing.T) {
	region, flash := testRegion(t, Geometry{Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1})

	flash.FailErases(1)
	err := region.EraseSector(1)
	require.ErrorIs(t, err, slotlog.ErrEraseFailed)

	flash.FailPrograms(1)
	err = region.ProgramPage(make([]byte, 256), 0)
	require.ErrorIs(t, err, slotlog.ErrProgramFailed)
}

func TestRegionExclusive(t *testing.T) {
	geo := Geometry{Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1}
	flash := mem.New(8192, 256, 4096)

	var runs int
	deny := errors.New("denied")
	region, err := New(flash, geo, slotlog.ExclusiveFunc(func(fn func() error) error {
		runs++
		if runs > 1 {
			return deny
		}
		return fn()
	}))
	require.NoError(t, err)

	require.NoError(t, region.EraseSector(0))
	err = region.ProgramPage(make([]byte, 256), 0)
	require.ErrorIs(t, err, slotlog.ErrProgramFailed)
	require.EqualValues(t, 0, flash.Programs(), "fn not called")
	require.Equal(t, 2, runs)
}
