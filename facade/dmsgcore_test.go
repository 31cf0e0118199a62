// File: facade/dmsgcore_test.go
// License: Apache-2.0

package facade_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/clusterkit/dmsgcore/facade"
	"github.com/clusterkit/dmsgcore/wire"
)

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	return ln
}

func TestListenDialOneShotRoundTrip(t *testing.T) {
	done := make(chan struct{})

	serverCfg := facade.DefaultConfig()
	serverCfg.ListenAddr = "127.0.0.1:0"
	serverCfg.Callbacks.ReceiveMsg = func(msg *wire.Msg) {
		// Server side has no peer reference to reply through in this
		// smoke test; just observe the delivery happened.
		if msg.Head.Cmd.HasCreate() && msg.Head.Cmd.HasDelete() {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	}

	server, err := facade.New(serverCfg)
	if err != nil {
		t.Fatalf("facade.New(server): %v", err)
	}

	ln := mustListen(t)
	serverCfg.ListenAddr = ln.Addr().String()
	ln.Close() // release the port; ListenAndServe rebinds it below

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.ListenAndServe(ctx)
	time.Sleep(50 * time.Millisecond) // let the listener bind

	client, err := facade.New(facade.DefaultConfig())
	if err != nil {
		t.Fatalf("facade.New(client): %v", err)
	}

	ioc, err := client.Dial(ctx, serverCfg.ListenAddr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	go ioc.Run(ctx)

	msg := ioc.NewTransaction(nil, 0)
	msg.Head.Cmd |= wire.CmdFlagDelete
	ioc.SendMessage(msg)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for server to observe the one-shot message")
	}

	server.Stop()
	client.Stop()
}

func TestControllerTracksConnectionCount(t *testing.T) {
	cfg := facade.DefaultConfig()
	d, err := facade.New(cfg)
	if err != nil {
		t.Fatalf("facade.New: %v", err)
	}
	if got := d.ConnectionCount(); got != 0 {
		t.Fatalf("ConnectionCount() = %d, want 0 before any connection", got)
	}
	stats := d.GetController().Stats()
	if _, ok := stats["listen_addr"]; !ok {
		t.Fatalf("Stats() missing listen_addr: %v", stats)
	}
}
