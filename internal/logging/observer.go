package logging

import (
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
	"github.com/shaunagostinho/qnflash/internal/protocol"
)

// Observer logs bootloader events: frames at debug, state changes and
// finished operations at info, warnings at warn.
type Observer struct {
	log *zap.Logger
}

// NewObserver returns an Observer logging under the "bootloader" name.
func NewObserver(log *zap.Logger) *Observer {
	return &Observer{log: log.Named("bootloader")}
}

func (o *Observer) StateChanged(from, to bootloader.State) {
	o.log.Info("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
}

func (o *Observer) FrameSent(cmd protocol.Command, payload []byte) {
	o.log.Debug("frame sent",
		zap.Stringer("cmd", cmd),
		zap.Int("len", len(payload)),
		zap.String("payload", hex.EncodeToString(payload)))
}

func (o *Observer) ResponseReceived(cmd protocol.Command, resp protocol.Response, err error) {
	if err != nil {
		o.log.Debug("response failed", zap.Stringer("cmd", cmd), zap.Error(err))
		return
	}
	o.log.Debug("response", zap.Stringer("cmd", cmd), zap.Stringer("resp", resp))
}

func (o *Observer) Progress(p bootloader.Progress) {
	fields := []zap.Field{zap.String("op", p.Operation), zap.Int("done", p.Done), zap.Int("total", p.Total)}
	if p.Done >= p.Total {
		o.log.Info("operation complete", fields...)
		return
	}
	o.log.Debug("progress", fields...)
}

func (o *Observer) Warning(msg string, err error) {
	o.log.Warn(msg, zap.Error(err))
}
