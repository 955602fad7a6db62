package store_test

import (
	"fmt"

	"github.com/dacapoday/slotlog"
	"github.com/dacapoday/slotlog/mem"
	"github.com/dacapoday/slotlog/store"
)

func Example() {
	geo := slotlog.Geometry{Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1}
	flash := mem.New(8192, 256, 4096)

	s := store.New[*mem.Flash](2)
	s.Register(0, slotlog.MustTag("conf"))
	s.Register(1, slotlog.MustTag("cal1"))
	avail, err := s.Open(flash, store.Options{Region: geo})
	if err != nil {
		panic(err)
	}
	fmt.Println("available:", avail)

	s.Save(0, []byte("mode=2"))
	s.Save(0, []byte("mode=3"))

	out := make([]byte, 6)
	if err := s.Load(0, out); err != nil {
		panic(err)
	}
	fmt.Println("conf:", string(out))

	state, _ := s.State(0)
	fmt.Println("version:", state.Version, "offset:", state.Offset)

	// Output:
	// available: [false false]
	// conf: mode=3
	// version: 2 offset: 256
}

func ExampleSingle() {
	geo := slotlog.Geometry{Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1}
	flash := mem.New(8192, 256, 4096)

	var s store.Single[*mem.Flash]
	s.Open(flash, store.Options{Region: geo})
	s.Save([]byte("v1"))
	s.Save([]byte("v2"))
	s.Close()

	// reboot
	var rebooted store.Single[*mem.Flash]
	avail, _ := rebooted.Open(flash, store.Options{Region: geo})

	out := make([]byte, 2)
	rebooted.Load(out)
	fmt.Println(avail, string(out), rebooted.PayloadSize())

	// Output:
	// true v2 248
}

func ExampleAccessor() {
	type calibration struct {
		Offset int16
		Gain   uint16
	}

	geo := slotlog.Geometry{Size: 8192, PageSize: 256, SectorSize: 4096, EntryPages: 1}
	var s store.Single[*mem.Flash]
	s.Open(mem.New(8192, 256, 4096), store.Options{Region: geo})

	acc, err := store.NewAccessor[calibration](&s)
	if err != nil {
		panic(err)
	}
	acc.Save(calibration{Offset: -12, Gain: 1024})

	cal, _ := acc.Load()
	fmt.Printf("%+v\n", cal)

	// Output:
	// {Offset:-12 Gain:1024}
}
