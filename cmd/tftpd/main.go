package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/litao91/tftpd/tftp"
	"github.com/litao91/tftpd/tftpconfig"
)

func main() {
	cfg, err := tftpconfig.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "tftpd:", err)
		os.Exit(2)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tftpd: failed to start logger:", err)
		os.Exit(1)
	}
	defer log.Sync()
	sugar := log.Sugar()

	ln, err := tftp.Listen(cfg.Addr(), tftp.Config{
		Root:           cfg.Root,
		AckTimeout:     cfg.AckTimeout,
		DefaultTimeout: cfg.DefaultTimeout,
		DefaultMode:    cfg.DefaultMode,
		Log:            sugar,
	})
	if err != nil {
		sugar.Fatalw("tftpd: failed to bind", "addr", cfg.Addr(), "err", err)
	}
	sugar.Infow("tftpd: listening", "addr", ln.Addr(), "root", cfg.Root)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ln.Serve(ctx); err != nil {
		sugar.Errorw("tftpd: serve exited with error", "err", err)
		os.Exit(1)
	}
	sugar.Infow("tftpd: shut down")
}
