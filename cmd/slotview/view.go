package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/dacapoday/slotlog/iterator"
	"github.com/dacapoday/slotlog/store"
)

// Interactive mode:
//
//	j/↓    scroll down
//	k/↑    scroll up
//	g      jump to first
//	G      jump to last
//	e      show or hide erased slots
//	/      seek offset (hex)
//	q/Esc  quit
func viewCommand() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "Browse the slots interactively",
		Action: func(c *cli.Context) error {
			s, err := openSession(c, true)
			if err != nil {
				return err
			}
			defer s.Close()

			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fail("view needs a terminal, use list instead")
			}
			oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
			if err != nil {
				return err
			}
			defer term.Restore(int(os.Stdin.Fd()), oldState)

			v := &viewer{s: s}
			v.setFilter(true)
			v.updateSize()
			v.load()

			fmt.Print("\033[?25l\033[2J")             // hide cursor, clear screen once
			defer fmt.Print("\033[?25h\033[2J\033[H") // show cursor, clear screen

			reader := bufio.NewReader(os.Stdin)
			for {
				// update terminal size on each render
				if v.updateSize() {
					v.load()
				}
				v.render()

				b, err := reader.ReadByte()
				if err != nil {
					return nil
				}

				v.status = "" // clear status on any input

				switch b {
				case 'q', 3, 27: // q, Ctrl+C, Esc
					if b == 27 && reader.Buffered() > 0 {
						// escape sequence
						b2, _ := reader.ReadByte()
						if b2 == '[' {
							b3, _ := reader.ReadByte()
							switch b3 {
							case 'A': // up
								v.up()
							case 'B': // down
								v.down()
							case '5': // page up
								reader.ReadByte()
								v.pageUp()
							case '6': // page down
								reader.ReadByte()
								v.pageDown()
							}
						}
						continue
					}
					return nil
				case 'j':
					v.down()
				case 'k':
					v.up()
				case 'g':
					v.first()
				case 'G':
					v.last()
				case 'e':
					v.setFilter(!v.hideErased)
					v.first()
				case '/':
					v.seek(reader)
				}
			}
		},
	}
}

type viewer struct {
	s          *session
	iter       iterator.Iterator[uint32, store.Slot]
	hideErased bool
	items      []store.Slot
	width      int
	height     int
	atStart    bool // no more slots before first
	atEnd      bool // no more slots after last
	status     string
}

func (v *viewer) setFilter(hide bool) {
	v.hideErased = hide
	if !hide {
		v.iter = v.s.slots()
		return
	}
	v.iter = &iterator.Filter[uint32, store.Slot]{
		Iterator: v.s.slots(),
		Keep: func(_ uint32, slot store.Slot) bool {
			return slot.Class != store.Erased
		},
	}
}

// updateSize checks terminal size and returns true if changed.
func (v *viewer) updateSize() bool {
	w, h, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil {
		w, h = 80, 24
	}
	if w == v.width && h == v.height {
		return false
	}
	v.width, v.height = w, h
	return true
}

func (v *viewer) lines() int {
	return v.height - 4 // title + separator + separator + status
}

func (v *viewer) load() {
	v.items = nil
	v.atStart = false
	v.atEnd = false

	if !v.iter.Valid() {
		v.iter.SeekFirst()
		if !v.iter.Valid() {
			v.atStart = true
			v.atEnd = true
			return
		}
	}

	lines := v.lines()
	for i := 0; i < lines && v.iter.Valid(); i++ {
		v.items = append(v.items, v.iter.Val())
		if !v.iter.Next() {
			v.atEnd = true
			break
		}
	}

	// check boundaries and restore position
	if len(v.items) > 0 {
		v.iter.Seek(v.items[0].Offset)
		if !v.iter.Prev() {
			v.atStart = true
		}
		v.iter.Seek(v.items[0].Offset)
	}
}

func (v *viewer) down() {
	if len(v.items) == 0 {
		return
	}

	last := v.items[len(v.items)-1].Offset
	v.iter.Seek(last)
	if v.iter.Next() {
		v.items = append(v.items[1:], v.iter.Val())
		v.atStart = false
		if !v.iter.Next() {
			v.atEnd = true
		}
		v.iter.Seek(v.items[0].Offset)
	} else if len(v.items) > 1 {
		// at end, allow scrolling until only 1 slot visible
		v.items = v.items[1:]
		v.atEnd = true
	}
}

func (v *viewer) up() {
	if v.atStart || len(v.items) == 0 {
		return
	}

	v.iter.Seek(v.items[0].Offset)
	if v.iter.Prev() {
		slot := v.iter.Val()
		// only remove from bottom if screen is full
		if len(v.items) >= v.lines() {
			v.items = append([]store.Slot{slot}, v.items[:len(v.items)-1]...)
		} else {
			v.items = append([]store.Slot{slot}, v.items...)
		}
		v.atEnd = false
		if !v.iter.Prev() {
			v.atStart = true
		}
		v.iter.Seek(v.items[0].Offset)
	}
}

func (v *viewer) pageDown() {
	for i := 0; i < v.lines()-1; i++ {
		v.down()
	}
}

func (v *viewer) pageUp() {
	for i := 0; i < v.lines()-1; i++ {
		v.up()
	}
}

func (v *viewer) first() {
	v.iter.SeekFirst()
	v.load()
}

func (v *viewer) last() {
	v.iter.SeekLast()
	// back up to show a full screen
	for i := 0; i < v.lines()-1; i++ {
		if !v.iter.Prev() {
			break
		}
	}
	v.load()
}

func (v *viewer) seek(reader *bufio.Reader) {
	fmt.Print("\033[?25h") // show cursor
	fmt.Printf("\033[%d;1H\033[K/0x", v.height)

	var input []byte
	for {
		b, err := reader.ReadByte()
		if err != nil {
			break
		}
		if b == 27 || b == 3 { // Esc or Ctrl+C
			fmt.Print("\033[?25l")
			return
		}
		if b == 13 || b == 10 { // Enter
			break
		}
		if b == 127 || b == 8 { // Backspace
			if len(input) > 0 {
				input = input[:len(input)-1]
				fmt.Print("\b \b")
			}
			continue
		}
		if strings.IndexByte("0123456789abcdefABCDEF", b) >= 0 {
			input = append(input, b)
			fmt.Print(string(b))
		}
	}
	fmt.Print("\033[?25l")

	if len(input) == 0 {
		return
	}
	off, err := strconv.ParseUint(string(input), 16, 32)
	if err != nil {
		v.status = err.Error()
		return
	}
	if v.iter.Seek(uint32(off)) {
		v.load()
		v.status = fmt.Sprintf("jumped to: %#x", v.items[0].Offset)
	} else {
		v.status = "not found"
	}
}

func (v *viewer) render() {
	var b strings.Builder

	// move to top (no clear)
	b.WriteString("\033[H")

	geo := v.s.cfg.Geometry()
	fmt.Fprintf(&b, "[ slotview ] region %#x+%#x  entry %d  payload %d\033[K\r\n",
		geo.Offset, geo.Size, geo.EntrySize(), geo.PayloadSize(!v.s.cfg.SingleType))
	b.WriteString(strings.Repeat("─", v.width))
	b.WriteString("\033[K\r\n")

	width := max(v.width-48, 20)
	lines := v.lines()
	for i := 0; i < lines; i++ {
		if i < len(v.items) {
			b.WriteString(v.s.line(v.items[i], width))
		} else {
			b.WriteString("~")
		}
		b.WriteString("\033[K\r\n")
	}

	b.WriteString(strings.Repeat("─", v.width))
	b.WriteString("\033[K\r\n")

	pos := ""
	if v.atStart && v.atEnd {
		pos = "[all]"
	} else if v.atStart {
		pos = "[top]"
	} else if v.atEnd {
		pos = "[end]"
	}

	if v.status != "" {
		b.WriteString(" ")
		b.WriteString(v.status)
		b.WriteString(" ")
		b.WriteString(pos)
	} else {
		b.WriteString(" j/k:scroll g/G:jump e:erased /:offset q:quit ")
		b.WriteString(pos)
	}
	b.WriteString("\033[K")

	fmt.Print(b.String())
}

// display formats bytes for display, truncating if needed.
// Tries to show as string if printable, otherwise hex.
func display(b []byte, maxLen int) string {
	if len(b) == 0 {
		return "(empty)"
	}

	if utf8.Valid(b) && isPrintable(b) {
		runes := []rune(string(b))
		if len(runes) > maxLen-3 {
			return string(runes[:maxLen-3]) + "..."
		}
		return string(runes)
	}

	hex := fmt.Sprintf("%x", b)
	if len(hex) > maxLen-3 {
		return hex[:maxLen-3] + "..."
	}
	return hex
}

func isPrintable(b []byte) bool {
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
