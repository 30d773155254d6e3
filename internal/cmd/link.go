package cmd

import (
	"github.com/luhtfiimanal/crowdlink/link"
	"github.com/luhtfiimanal/crowdlink/serial"
)

// openPort is swapped in tests for a scripted device.
var openPort link.Opener = serial.Open

func newManager(ctx *AppContext) *link.Manager {
	logger := ctx.Logger.With().Str("port", ctx.Config.Serial.Port).Logger()
	return link.NewManager(link.Options{
		Serial: ctx.Config.SerialPort(),
		Settle: ctx.Config.Serial.Settle,
		Opener: openPort,
		Logger: &logger,
	})
}
