// File: cmd/dmsgcored/main.go
// License: Apache-2.0
//
// dmsgcored is a small daemon wrapping facade.DmsgCore: flag-parsed
// config, stdlib logging setup, a periodic connection-count reporter,
// and cross-platform signal-driven shutdown — composed the way teacher
// examples/stest/server/main.go wires its own accept loop and shutdown
// signal handling around the facade, simplified since facade.ListenAndServe
// already owns the accept loop and per-connection goroutines here.

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clusterkit/dmsgcore/facade"
	"github.com/clusterkit/dmsgcore/wire"
)

func main() {
	addr := flag.String("addr", ":7946", "transaction-engine listen address")
	verbose := flag.Bool("verbose", false, "enable verbose RX/TX path logging")
	pinCPU := flag.Int("pin-cpu", -1, "pin the accept loop's OS thread to this logical CPU (-1 disables)")
	rxBuf := flag.Int("rx-buf", 64*1024, "per-connection RX buffer size in bytes")
	txBuf := flag.Int("tx-buf", 64*1024, "per-connection TX buffer size in bytes")
	flag.Parse()

	logger := log.New(os.Stderr, "dmsgcored: ", log.LstdFlags)

	cfg := facade.DefaultConfig()
	cfg.ListenAddr = *addr
	cfg.Verbose = *verbose
	cfg.Logger = logger
	cfg.PinCPU = *pinCPU
	cfg.RxBufSize = *rxBuf
	cfg.TxBufSize = *txBuf
	cfg.Callbacks.ReceiveMsg = func(msg *wire.Msg) {
		if *verbose {
			logger.Printf("received frame: cmd=%#x tcmd=%#x err=%d", msg.Head.Cmd, msg.TCmd, msg.Head.Error)
		}
	}

	core, err := facade.New(cfg)
	if err != nil {
		logger.Fatalf("facade.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- core.ListenAndServe(ctx) }()

	reportDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-reportDone:
				return
			case <-ticker.C:
				logger.Printf("connections=%d", core.ConnectionCount())
			}
		}
	}()

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		logger.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			logger.Printf("listen error: %v", err)
		}
	}

	cancel()
	close(reportDone)
	if err := core.Stop(); err != nil {
		logger.Printf("stop error: %v", err)
	}
	logger.Println("shutdown complete")
}
