// File: facade/dmsgcore.go
// License: Apache-2.0
//
// DmsgCore orchestrates the core subsystems of the transaction-engine
// transport — control plane, message pooling, optional CPU pinning, and
// per-connection IOCOM lifecycle — behind one composable, one-call-setup
// API, the same role teacher facade/hioload.go played for its transport
// stack (NewDPDKTransport/NewTransport selection, control adapter wiring,
// affinity pinning on Start).

package facade

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/clusterkit/dmsgcore/affinity"
	"github.com/clusterkit/dmsgcore/control"
	"github.com/clusterkit/dmsgcore/crypto"
	"github.com/clusterkit/dmsgcore/iocom"
	"github.com/clusterkit/dmsgcore/pool"
)

// Config exposes all configurable system parameters for one dmsgcored
// process.
type Config struct {
	ListenAddr string

	RxBufSize int
	TxBufSize int

	Verbose bool
	Logger  *log.Logger

	// PinCPU pins the OS thread of the goroutine that calls Start
	// (ListenAndServe calls it before its accept loop) to a logical CPU
	// when >= 0; Dial does not pin. Each accepted connection's IO-core
	// goroutine is left unpinned unless PinPerConn is also set.
	PinCPU     int
	PinPerConn bool

	// Negotiator runs once per accepted/dialed connection before the
	// IOCOM starts framing traffic; nil means plaintext (crypto.NoopNegotiator).
	Negotiator crypto.Negotiator

	// Callbacks are shared across every connection this facade manages.
	Callbacks iocom.Callbacks

	// AltFD is the optional alternative bulk-I/O descriptor shared by
	// every IOCOM this facade starts; nil means none.
	AltFD *os.File

	HandshakeTimeout time.Duration
}

// DefaultConfig returns the knobs dmsgcored runs with absent any flags.
func DefaultConfig() *Config {
	base := control.DefaultConfig()
	return &Config{
		ListenAddr:       ":7946",
		RxBufSize:        base.RxBufSize,
		TxBufSize:        base.TxBufSize,
		Logger:           log.Default(),
		PinCPU:           -1,
		Negotiator:       crypto.NoopNegotiator{},
		HandshakeTimeout: 5 * time.Second,
	}
}

// DmsgCore is the main facade struct: control plane, pooling, and the
// set of live per-connection IOCOMs it supervises.
type DmsgCore struct {
	cfg     *Config
	ctrl    *control.Controller
	msgPool *pool.MsgPool

	mu      sync.RWMutex
	conns   map[string]*iocom.IOCOM
	started bool
	ln      net.Listener
}

// New creates and initializes a new DmsgCore facade instance.
func New(cfg *Config) (*DmsgCore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Negotiator == nil {
		cfg.Negotiator = crypto.NoopNegotiator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	d := &DmsgCore{
		cfg:     cfg,
		ctrl:    control.NewController(),
		msgPool: pool.NewMsgPool(),
		conns:   make(map[string]*iocom.IOCOM),
	}

	d.ctrl.SetConfig(map[string]any{
		"listen_addr": cfg.ListenAddr,
		"rx_buf_size": cfg.RxBufSize,
		"tx_buf_size": cfg.TxBufSize,
	})
	d.ctrl.RegisterDebugProbe("conns.count", func() any {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return len(d.conns)
	})

	return d, nil
}

// Start applies CPU pinning for the accept loop's own goroutine, if
// configured, and marks the facade as started.
func (d *DmsgCore) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	if d.cfg.PinCPU >= 0 {
		if err := affinity.SetAffinity(d.cfg.PinCPU); err != nil {
			d.cfg.Logger.Printf("dmsgcore: affinity pin warning: %v", err)
		}
	}
	d.started = true
	return nil
}

// ListenAndServe binds cfg.ListenAddr, then Accepts connections until
// ctx is cancelled, spawning one IOCOM per accepted connection.
func (d *DmsgCore) ListenAndServe(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", d.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("dmsgcore: listen: %w", err)
	}
	d.mu.Lock()
	d.ln = ln
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("dmsgcore: accept: %w", err)
			}
		}
		go d.serve(ctx, conn)
	}
}

// Dial opens an outbound connection and returns its IOCOM without
// blocking on Run; the caller drives the returned IOCOM's lifetime via
// its own ctx.
func (d *DmsgCore) Dial(ctx context.Context, addr string) (*iocom.IOCOM, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dmsgcore: dial: %w", err)
	}
	ioc, err := d.negotiateAndWrap(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	d.track(conn.RemoteAddr().String(), ioc)
	return ioc, nil
}

func (d *DmsgCore) serve(ctx context.Context, conn net.Conn) {
	ioc, err := d.negotiateAndWrap(ctx, conn)
	if err != nil {
		d.cfg.Logger.Printf("dmsgcore: handshake failed for %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	key := conn.RemoteAddr().String()
	d.track(key, ioc)
	defer d.untrack(key)

	if d.cfg.PinPerConn && d.cfg.PinCPU >= 0 {
		if err := affinity.SetAffinity(d.cfg.PinCPU); err != nil {
			d.cfg.Logger.Printf("dmsgcore: per-conn affinity pin warning: %v", err)
		}
	}
	ioc.Run(ctx)
}

func (d *DmsgCore) negotiateAndWrap(ctx context.Context, conn net.Conn) (*iocom.IOCOM, error) {
	if d.cfg.HandshakeTimeout > 0 {
		conn.SetDeadline(time.Now().Add(d.cfg.HandshakeTimeout))
		defer conn.SetDeadline(time.Time{})
	}

	codec, err := d.cfg.Negotiator.Negotiate(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("crypto negotiate: %w", err)
	}

	ioc := iocom.New(conn, iocom.Config{
		Label:     conn.RemoteAddr().String(),
		Callbacks: d.cfg.Callbacks,
		Codec:     codec,
		RxBufSize: d.cfg.RxBufSize,
		TxBufSize: d.cfg.TxBufSize,
		Verbose:   d.cfg.Verbose,
		Logger:    d.cfg.Logger,
		MsgPool:   d.msgPool,
		AltFD:     d.cfg.AltFD,
	})
	ioc.SetMetricsHook(func(delta int64) { d.ctrl.Metrics.Add("open_states", delta) })
	return ioc, nil
}

func (d *DmsgCore) track(key string, ioc *iocom.IOCOM) {
	d.mu.Lock()
	d.conns[key] = ioc
	d.mu.Unlock()
	d.ctrl.Metrics.Add("connections.total", 1)
}

func (d *DmsgCore) untrack(key string) {
	d.mu.Lock()
	delete(d.conns, key)
	d.mu.Unlock()
}

// Stop tears down the listener (if any) and every tracked connection.
func (d *DmsgCore) Stop() error {
	d.mu.Lock()
	ln := d.ln
	conns := make([]*iocom.IOCOM, 0, len(d.conns))
	for _, ioc := range d.conns {
		conns = append(conns, ioc)
	}
	d.started = false
	d.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, ioc := range conns {
		ioc.Stop()
	}
	return nil
}

// GetController exposes the control plane: config, metrics, debug probes.
func (d *DmsgCore) GetController() *control.Controller {
	return d.ctrl
}

// ConnectionCount returns the number of live connections this facade is
// currently supervising.
func (d *DmsgCore) ConnectionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}
