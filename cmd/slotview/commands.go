package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dacapoday/slotlog/image"
	"github.com/dacapoday/slotlog/store"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create an erased flash image sized for the configured device",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing image"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			path := c.String("image")
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return fail("%s exists, use --force to overwrite", path)
			}
			geo := cfg.Geometry()
			img, err := image.Create(path, cfg.DeviceSize(), int64(geo.PageSize), int64(geo.SectorSize))
			if err != nil {
				return err
			}
			log.WithField("size", cfg.DeviceSize()).Infof("created %s", path)
			return img.Close()
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Rescan the region and print the newest record per type",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "metrics", Usage: "Print the collected store metrics"},
		},
		Action: func(c *cli.Context) error {
			s, err := openSession(c, true)
			if err != nil {
				return err
			}
			defer s.Close()

			states, err := s.states()
			if err != nil {
				return err
			}
			for i, name := range s.names() {
				ts := states[i]
				if !ts.Has {
					fmt.Printf("%-8s  (none)\n", name)
					continue
				}
				fmt.Printf("%-8s  version %-10d offset %#08x\n", name, ts.Version, ts.Offset)
			}

			counts := make(map[store.Class]int)
			slots := s.slots()
			for slots.SeekFirst(); slots.Valid(); slots.Next() {
				counts[slots.Val().Class]++
			}
			if err := slots.Error(); err != nil {
				return err
			}
			fmt.Printf("slots: %d valid, %d corrupt, %d foreign, %d erased\n",
				counts[store.Valid], counts[store.Corrupt], counts[store.Foreign], counts[store.Erased])

			if c.Bool("metrics") {
				return printMetrics(s)
			}
			return nil
		},
	}
}

func printMetrics(s *session) error {
	families, err := s.registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			var labels []string
			for _, pair := range m.GetLabel() {
				labels = append(labels, pair.GetName()+"="+pair.GetValue())
			}
			sort.Strings(labels)
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			fmt.Printf("%s{%s} %g\n", family.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print every slot of the region",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "Number of slots (0 = all)"},
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include erased slots"},
		},
		Action: func(c *cli.Context) error {
			s, err := openSession(c, true)
			if err != nil {
				return err
			}
			defer s.Close()

			count := c.Int("count")
			n := 0
			slots := s.slots()
			for slots.SeekFirst(); slots.Valid(); slots.Next() {
				slot := slots.Val()
				if slot.Class == store.Erased && !c.Bool("all") {
					continue
				}
				if count > 0 && n >= count {
					break
				}
				fmt.Println(s.line(slot, 60))
				n++
			}
			return slots.Error()
		},
	}
}

// line formats one slot as a single line.
func (s *session) line(slot store.Slot, width int) string {
	mark := " "
	if slot.Newest {
		mark = "*"
	}
	line := fmt.Sprintf("%s %#08x  s%-3d %-7s %-6s", mark, slot.Offset, slot.Sector, slot.Class, s.typeName(slot))
	if slot.Class == store.Valid || slot.Class == store.Foreign {
		line += fmt.Sprintf(" v%-8d %s", slot.Version, display(trimErased(slot.Payload), width))
	}
	return line
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the payload of the newest record of a type",
		ArgsUsage: "<type>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "Write the full payload to stdout unchanged"},
		},
		Action: func(c *cli.Context) error {
			s, err := openSession(c, true)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.payload(c.Args().First())
			if err != nil {
				return err
			}
			out := make([]byte, p.PayloadSize())
			if err := p.Load(out); err != nil {
				return err
			}
			if c.Bool("raw") {
				_, err = os.Stdout.Write(out)
				return err
			}
			fmt.Println(display(trimErased(out), 1<<16))
			return nil
		},
	}
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Save a new record of a type",
		ArgsUsage: "<type> [value]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, TakesFile: true, Usage: "Read the payload from a file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fail("usage: put <type> [value]")
			}
			payload := []byte(c.Args().Get(1))
			if path := c.String("file"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				payload = data
			}

			s, err := openSession(c, false)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.payload(c.Args().First())
			if err != nil {
				return err
			}
			if err := p.Save(payload); err != nil {
				return err
			}
			states, err := s.states()
			if err != nil {
				return err
			}
			for i, name := range s.names() {
				if name == c.Args().First() || len(states) == 1 {
					s.log.WithField("version", states[i].Version).WithField("offset", states[i].Offset).Infof("saved %s", name)
					break
				}
			}
			return nil
		},
	}
}

func eraseCommand() *cli.Command {
	return &cli.Command{
		Name:  "erase",
		Usage: "Erase the whole region",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Confirm the erase"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return fail("erase destroys every record, pass --yes to confirm")
			}
			s, err := openSession(c, false)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.eraseAll()
		},
	}
}

// trimErased drops the trailing erased bytes of a payload.
func trimErased(p []byte) []byte {
	return bytes.TrimRight(p, "\xff")
}
