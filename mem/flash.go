// Package mem provides an in-memory NOR flash for tests and host tools.
package mem

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/dacapoday/slotlog"
)

// ErrInjected is returned by operations failed through fault injection.
var ErrInjected = errors.New("injected fault")

// Flash is an in-memory implementation of the slotlog.Flash interface.
// It is safe for concurrent use by multiple goroutines.
//
// Flash behaves like NOR flash: erase sets a whole sector to 0xFF and
// programming a page can only clear bits.
//
//	f := mem.New(8192, 256, 4096)
//	f.EraseSector(0)
//	f.ProgramPage(page, 0)
type Flash struct {
	rw         sync.RWMutex
	data       []byte
	pageSize   int64
	sectorSize int64

	erases   []uint32 // per sector
	programs uint64

	failErases      int
	failPrograms    int
	tearPrograms    int
	corruptPrograms int
}

var _ slotlog.Flash = new(Flash)

// New returns an erased flash of size bytes.
// size must be a multiple of sectorSize, which must be a multiple of pageSize.
func New(size, pageSize, sectorSize int64) *Flash {
	if pageSize <= 0 || sectorSize%pageSize != 0 || size%sectorSize != 0 {
		panic(errors.Errorf("mem.New: invalid geometry size=%d page=%d sector=%d", size, pageSize, sectorSize))
	}
	flash := &Flash{
		data:       make([]byte, size),
		pageSize:   pageSize,
		sectorSize: sectorSize,
		erases:     make([]uint32, size/sectorSize),
	}
	fill(flash.data)
	return flash
}

func fill(b []byte) {
	for i := range b {
		b[i] = 0xFF
	}
}

// Size returns the size of the flash in bytes.
func (flash *Flash) Size() int64 {
	return int64(len(flash.data))
}

// ReadAt reads len(p) bytes into p starting at byte offset off.
// It implements io.ReaderAt interface.
func (flash *Flash) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	flash.rw.RLock()
	defer flash.rw.RUnlock()
	if off >= int64(len(flash.data)) {
		return 0, io.EOF
	}
	n = copy(p, flash.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return
}

// EraseSector sets every byte of the sector starting at off to 0xFF.
func (flash *Flash) EraseSector(off int64) error {
	flash.rw.Lock()
	defer flash.rw.Unlock()

	if off < 0 || off%flash.sectorSize != 0 || off >= int64(len(flash.data)) {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "erase at %#x", off)
	}
	if flash.failErases > 0 {
		flash.failErases--
		return errors.Wrapf(ErrInjected, "erase at %#x", off)
	}

	fill(flash.data[off : off+flash.sectorSize])
	flash.erases[off/flash.sectorSize]++
	return nil
}

// ProgramPage programs one page starting at off.
// Like NOR flash, programming ANDs p into the current content.
func (flash *Flash) ProgramPage(p []byte, off int64) error {
	flash.rw.Lock()
	defer flash.rw.Unlock()

	if int64(len(p)) != flash.pageSize {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "program of %d bytes, page is %d", len(p), flash.pageSize)
	}
	if off < 0 || off%flash.pageSize != 0 || off+flash.pageSize > int64(len(flash.data)) {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "program at %#x", off)
	}
	if flash.failPrograms > 0 {
		flash.failPrograms--
		return errors.Wrapf(ErrInjected, "program at %#x", off)
	}

	page := flash.data[off : off+flash.pageSize]
	if flash.tearPrograms > 0 {
		flash.tearPrograms--
		half := len(p) / 2
		for i := range half {
			page[i] &= p[i]
		}
		return errors.Wrapf(ErrInjected, "torn program at %#x", off)
	}

	for i := range page {
		page[i] &= p[i]
	}
	flash.programs++

	if flash.corruptPrograms > 0 {
		flash.corruptPrograms--
		page[len(page)-1] ^= 0x01
	}
	return nil
}

// FailErases makes the next n EraseSector calls fail without touching the flash.
func (flash *Flash) FailErases(n int) {
	flash.rw.Lock()
	flash.failErases = n
	flash.rw.Unlock()
}

// FailPrograms makes the next n ProgramPage calls fail without touching the flash.
func (flash *Flash) FailPrograms(n int) {
	flash.rw.Lock()
	flash.failPrograms = n
	flash.rw.Unlock()
}

// TearPrograms makes the next n ProgramPage calls program only the first
// half of the page before failing, as a power loss would.
func (flash *Flash) TearPrograms(n int) {
	flash.rw.Lock()
	flash.tearPrograms = n
	flash.rw.Unlock()
}

// CorruptPrograms makes the next n ProgramPage calls report success while
// leaving the last bit of the page wrong.
func (flash *Flash) CorruptPrograms(n int) {
	flash.rw.Lock()
	flash.corruptPrograms = n
	flash.rw.Unlock()
}

// FlipBit inverts one bit, simulating bit rot.
func (flash *Flash) FlipBit(off int64, bit uint) {
	flash.rw.Lock()
	flash.data[off] ^= 1 << (bit % 8)
	flash.rw.Unlock()
}

// EraseCount returns how often the sector starting at off has been erased.
func (flash *Flash) EraseCount(off int64) uint32 {
	flash.rw.RLock()
	defer flash.rw.RUnlock()
	return flash.erases[off/flash.sectorSize]
}

// Programs returns the number of successful page programs.
func (flash *Flash) Programs() uint64 {
	flash.rw.RLock()
	defer flash.rw.RUnlock()
	return flash.programs
}

// ReadFrom replaces the flash content with data read from r until EOF.
// It implements io.ReaderFrom interface.
//
// Bytes beyond the data read are left erased. Data beyond the flash size is
// an error.
func (flash *Flash) ReadFrom(r io.Reader) (n int64, err error) {
	flash.rw.Lock()
	defer flash.rw.Unlock()

	fill(flash.data)
	for {
		if n == int64(len(flash.data)) {
			var probe [1]byte
			c, err := r.Read(probe[:])
			if c > 0 {
				return n, slotlog.Errorf(slotlog.ErrOutOfRange, "image larger than %d bytes", len(flash.data))
			}
			if err == io.EOF {
				err = nil
			}
			return n, err
		}
		c, err := r.Read(flash.data[n:])
		n += int64(c)
		if err != nil {
			if err == io.EOF {
				err = nil
			}
			return n, err
		}
	}
}

// WriteTo writes the entire flash content to w.
// It implements io.WriterTo interface.
func (flash *Flash) WriteTo(w io.Writer) (n int64, err error) {
	flash.rw.RLock()
	defer flash.rw.RUnlock()
	c, err := w.Write(flash.data)
	return int64(c), err
}

// Clone returns a copy of the flash content with the same geometry and no
// pending faults, as seen by a device after reset.
func (flash *Flash) Clone() *Flash {
	flash.rw.RLock()
	defer flash.rw.RUnlock()
	clone := &Flash{
		data:       append([]byte(nil), flash.data...),
		pageSize:   flash.pageSize,
		sectorSize: flash.sectorSize,
		erases:     append([]uint32(nil), flash.erases...),
		programs:   flash.programs,
	}
	return clone
}
