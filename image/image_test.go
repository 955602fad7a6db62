package image

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/slotlog"
	"github.com/dacapoday/slotlog/store"
)

func TestImageCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	img, err := Create(path, 8192, 256, 4096)
	require.NoError(t, err, "image.Create")
	require.EqualValues(t, 8192, img.Size())
	require.NoError(t, img.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xFF}, 8192), data)

	_, err = Create(path, 8000, 256, 4096)
	require.ErrorIs(t, err, slotlog.ErrInvalidGeometry)
	_, err = Open(path, 256, 3000, false)
	require.ErrorIs(t, err, slotlog.ErrInvalidGeometry)
}

func TestImageProgramErase(t *testing.T) {
	img, err := Create(filepath.Join(t.TempDir(), "flash.bin"), 8192, 256, 4096)
	require.NoError(t, err)
	defer img.Close()

	page := bytes.Repeat([]byte{0x0F}, 256)
	require.NoError(t, img.ProgramPage(page, 4096))
	require.NoError(t, img.ProgramPage(bytes.Repeat([]byte{0xF3}, 256), 4096))

	got := make([]byte, 256)
	_, err = img.ReadAt(got, 4096)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x03}, 256), got, "program only clears bits")

	require.NoError(t, img.EraseSector(4096))
	_, err = img.ReadAt(got, 4096)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xFF}, 256), got)

	require.ErrorIs(t, img.EraseSector(100), slotlog.ErrOutOfRange)
	require.ErrorIs(t, img.ProgramPage(page, 8192), slotlog.ErrOutOfRange)
	require.ErrorIs(t, img.ProgramPage(page[:10], 0), slotlog.ErrOutOfRange)
}

func TestImageStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	geo := slotlog.Geometry{Offset: 4096, Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1}

	img, err := Create(path, 16384, 256, 4096)
	require.NoError(t, err)
	var s store.Single[*Image]
	_, err = s.Open(img, store.Options{Region: geo})
	require.NoError(t, err)
	require.NoError(t, s.Save([]byte("persisted")))
	require.NoError(t, s.Close())
	require.NoError(t, img.Close())

	img, err = Open(path, 256, 4096, true)
	require.NoError(t, err)
	defer img.Close()
	var reopened store.Single[*Image]
	avail, err := reopened.Open(img, store.Options{Region: geo})
	require.NoError(t, err)
	require.True(t, avail)

	out := make([]byte, 9)
	require.NoError(t, reopened.Load(out))
	require.Equal(t, "persisted", string(out))
}
