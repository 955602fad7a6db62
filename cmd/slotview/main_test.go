package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/slotlog"
	"github.com/dacapoday/slotlog/image"
	"github.com/dacapoday/slotlog/store"
)

const testConfig = `
region:
  offset: 0x1000
  size: 0x2000
types: [conf, cal1]
log_level: error
`

func setup(t *testing.T) (run func(args ...string) error, img string) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "")
	dir := t.TempDir()
	cfg := filepath.Join(dir, "store.yaml")
	img = filepath.Join(dir, "flash.bin")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o644))

	run = func(args ...string) error {
		return newApp().Run(append([]string{"slotview", "-c", cfg, "-i", img}, args...))
	}
	return
}

func loadImage(t *testing.T, path string, index int) (string, error) {
	t.Helper()
	img, err := image.Open(path, 256, 4096, true)
	require.NoError(t, err)
	defer img.Close()

	s := store.New[*image.Image](2)
	require.NoError(t, s.Register(0, slotlog.MustTag("conf")))
	require.NoError(t, s.Register(1, slotlog.MustTag("cal1")))
	geo := slotlog.Geometry{Offset: 0x1000, Size: 0x2000, PageSize: 256, SectorSize: 4096, EntryPages: 1}
	_, err = s.Open(img, store.Options{Region: geo})
	require.NoError(t, err)
	defer s.Close()

	out := make([]byte, 6)
	if err := s.Load(index, out); err != nil {
		return "", err
	}
	return string(out), nil
}

func TestCommands(t *testing.T) {
	run, img := setup(t)

	require.NoError(t, run("init"), "init")
	info, err := os.Stat(img)
	require.NoError(t, err)
	require.EqualValues(t, 0x3000, info.Size())
	require.Error(t, run("init"), "image exists")
	require.NoError(t, run("init", "--force"))

	require.NoError(t, run("put", "conf", "mode=2"))
	require.NoError(t, run("put", "conf", "mode=3"))
	require.NoError(t, run("put", "cal1", "gain=9"))
	require.Error(t, run("put", "nope", "x"), "unknown type")

	got, err := loadImage(t, img, 0)
	require.NoError(t, err)
	require.Equal(t, "mode=3", got)
	got, err = loadImage(t, img, 1)
	require.NoError(t, err)
	require.Equal(t, "gain=9", got)

	require.NoError(t, run("get", "conf"))
	require.NoError(t, run("scan", "--metrics"))
	require.NoError(t, run("list", "-a", "-n", "5"))

	require.Error(t, run("erase"), "needs --yes")
	require.NoError(t, run("erase", "--yes"))
	_, err = loadImage(t, img, 0)
	require.ErrorIs(t, err, slotlog.ErrNoRecord)
}

func TestDisplay(t *testing.T) {
	require.Equal(t, "(empty)", display(nil, 10))
	require.Equal(t, "hello", display([]byte("hello"), 10))
	require.Equal(t, "hello w...", display([]byte("hello world!"), 10))
	require.Equal(t, "00ff", display([]byte{0, 0xFF}, 10))
	require.Equal(t, []byte("ab"), trimErased([]byte{'a', 'b', 0xFF, 0xFF}))
}
