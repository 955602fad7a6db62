// slotview inspects and edits a flash image holding a record store.
//
// Usage:
//
//	slotview -c store.yaml -i flash.bin init          # create an erased image
//	slotview -c store.yaml -i flash.bin scan          # newest record per type
//	slotview -c store.yaml -i flash.bin list -n 20    # print slots
//	slotview -c store.yaml -i flash.bin view          # interactive mode
//	slotview -c store.yaml -i flash.bin get conf
//	slotview -c store.yaml -i flash.bin put conf 'mode=3'
//	slotview -c store.yaml -i flash.bin erase --yes
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/dacapoday/slotlog/config"
	"github.com/dacapoday/slotlog/image"
	"github.com/dacapoday/slotlog/metrics"
	"github.com/dacapoday/slotlog/store"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "slotview",
		Usage: "Inspect a log-structured record store in a flash image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, TakesFile: true, Usage: "Store configuration file", EnvVars: []string{"SLOTVIEW_CONFIG"}},
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: true, TakesFile: true, Usage: "Flash image file", EnvVars: []string{"SLOTVIEW_IMAGE"}},
			&cli.StringFlag{Name: "log-level", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{config.LogLevelEnv}},
		},
		Commands: []*cli.Command{
			initCommand(),
			scanCommand(),
			listCommand(),
			viewCommand(),
			getCommand(),
			putCommand(),
			eraseCommand(),
		},
	}
}

// session is an open store over an image, in either layout.
type session struct {
	cfg      *config.Config
	img      *image.Image
	multi    *store.Store[*image.Image]
	single   *store.Single[*image.Image]
	registry *prometheus.Registry
	log      *logrus.Logger
}

func loadConfig(c *cli.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	log, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   term.IsTerminal(int(os.Stderr.Fd())),
	})
	cfg.SetLogger(log)
	return cfg, log, nil
}

func openSession(c *cli.Context, readOnly bool) (*session, error) {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	geo := cfg.Geometry()
	img, err := image.Open(c.String("image"), int64(geo.PageSize), int64(geo.SectorSize), readOnly)
	if err != nil {
		return nil, err
	}
	if img.Size() < cfg.DeviceSize() {
		img.Close()
		return nil, errors.Errorf("image is %d bytes, device is %d", img.Size(), cfg.DeviceSize())
	}

	s := &session{cfg: cfg, img: img, registry: prometheus.NewRegistry(), log: log}
	cfg.SetMetrics(metrics.New(s.registry))

	if cfg.SingleType {
		s.single = &store.Single[*image.Image]{}
		_, err = s.single.Open(img, cfg)
	} else {
		err = s.openMulti()
	}
	if err != nil {
		img.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) openMulti() error {
	tags, err := s.cfg.Tags()
	if err != nil {
		return err
	}
	s.multi = store.New[*image.Image](len(tags))
	for i, tag := range tags {
		if err := s.multi.Register(i, tag); err != nil {
			return err
		}
	}
	_, err = s.multi.Open(s.img, s.cfg)
	return err
}

func (s *session) Close() error {
	if s.multi != nil {
		s.multi.Close()
	}
	if s.single != nil {
		s.single.Close()
	}
	return s.img.Close()
}

// names returns the record type names in index order.
func (s *session) names() []string {
	if s.single != nil {
		return []string{store.Name}
	}
	return s.cfg.Types
}

func (s *session) payload(name string) (store.Payload, error) {
	if s.single != nil {
		if name != store.Name && name != "" {
			return nil, errors.Errorf("single type store has only type %q", store.Name)
		}
		return s.single, nil
	}
	index, err := s.cfg.Index(name)
	if err != nil {
		return nil, err
	}
	return s.multi.Type(index), nil
}

func (s *session) states() ([]store.TypeState, error) {
	if s.single != nil {
		ts, err := s.single.State()
		return []store.TypeState{ts}, err
	}
	return s.multi.States()
}

func (s *session) slots() *store.Cursor[*image.Image] {
	if s.single != nil {
		return s.single.Slots()
	}
	return s.multi.Slots()
}

func (s *session) eraseAll() error {
	if s.single != nil {
		return s.single.EraseAll()
	}
	return s.multi.EraseAll()
}

// typeName labels a slot for display.
func (s *session) typeName(slot store.Slot) string {
	switch {
	case slot.Type >= 0:
		return s.names()[slot.Type]
	case slot.Class == store.Foreign:
		return slot.Tag.String()
	}
	return "-"
}

func fail(format string, args ...any) error {
	return errors.Errorf(format, args...)
}
