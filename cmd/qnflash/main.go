package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/shaunagostinho/qnflash/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var root cli.CLI
	kctx := kong.Parse(&root,
		kong.Name("qnflash"),
		kong.Description("Read and program QN902x devices through the serial bootloader."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run(&root)
	cancel()
	kctx.FatalIfErrorf(err)
}
