package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
	"github.com/shaunagostinho/qnflash/internal/capture"
	"github.com/shaunagostinho/qnflash/internal/logging"
	"github.com/shaunagostinho/qnflash/internal/monitor"
	"github.com/shaunagostinho/qnflash/internal/sim"
	"github.com/shaunagostinho/qnflash/internal/transport"
	"github.com/shaunagostinho/qnflash/internal/ui"
	"github.com/shaunagostinho/qnflash/web"
)

// session is one connected bootloader plus everything observing it.
type session struct {
	client   *bootloader.Client
	log      *zap.Logger
	port     transport.Port
	recorder *capture.Recorder
	reporter ui.Reporter
	cancel   context.CancelFunc
}

// connect builds the port and observers from config and runs the
// handshake. The returned session must be closed with the command's error.
func (g *CLI) connect(ctx context.Context, title string) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging, nil)
	if err != nil {
		return nil, err
	}

	s := &session{log: log}
	ctx, s.cancel = context.WithCancel(ctx)

	if g.Demo {
		log.Info("using simulated bootloader")
		s.port = sim.NewDemoDevice()
	} else {
		s.port = transport.NewSerial(transport.SerialConfig{
			PortPath:    cfg.Serial.PortPath,
			BaudRate:    bootloader.BootstrapBaudRate,
			ReadTimeout: bootloader.SyncReadTimeout,
		}, log)
	}
	if cfg.Capture.Enabled {
		s.recorder = capture.NewRecorder(cfg.Capture, log)
		s.port = capture.Wrap(s.port, s.recorder)
	}

	s.reporter = ui.New(g.status(), title, g.Plain)
	observers := bootloader.MultiObserver{s.reporter}
	if g.Verbose {
		observers = append(observers, logging.NewObserver(log))
	}
	if cfg.Monitor.ListenAddr != "" {
		mon := monitor.New(cfg.Monitor.ListenAddr, web.FS, log)
		if _, err := mon.Start(ctx); err != nil {
			s.close(err)
			return nil, fmt.Errorf("monitor: %w", err)
		}
		observers = append(observers, mon.Observer())
	}

	opts := append(cfg.ClientOptions(), bootloader.WithObserver(observers))
	s.client = bootloader.New(s.port, opts...)
	if err := s.client.Connect(ctx); err != nil {
		s.close(err)
		return nil, err
	}
	return s, nil
}

// close releases the session and reports err as the outcome.
func (s *session) close(err error) {
	s.reporter.Finish(err)
	if cerr := s.port.Close(); cerr != nil {
		s.log.Warn("close port", zap.Error(cerr))
	}
	if s.recorder != nil {
		s.recorder.Close()
	}
	s.cancel()
	s.log.Sync()
}

// run connects, runs fn and closes the session with fn's result.
func (g *CLI) run(ctx context.Context, title string, fn func(ctx context.Context, c *bootloader.Client) error) error {
	s, err := g.connect(ctx, title)
	if err != nil {
		return err
	}
	err = fn(ctx, s.client)
	s.close(err)
	return err
}
