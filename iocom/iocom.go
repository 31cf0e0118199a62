// File: iocom/iocom.go
// Package iocom implements the connection object: the RX IOQ (the TX side
// writes prepared frames directly, without an IOQ), two state trees, the
// root sentinel, the cross-thread transmit queue, and the single IO-core
// loop that owns all of it. License: Apache-2.0
//
// Shape grounded on the original implementation's dmsg_iocom_init; the
// poll/dispatch loop's batching and backoff idiom follows the teacher's
// core/concurrency/eventloop.go (EventLoop.Run: a single goroutine
// draining ready work until Stop, with a dedicated wakeup channel in
// place of the original's self-pipe).

package iocom

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/clusterkit/dmsgcore/internal/blockio"
	"github.com/clusterkit/dmsgcore/ioq"
	"github.com/clusterkit/dmsgcore/pool"
	"github.com/clusterkit/dmsgcore/state"
	"github.com/clusterkit/dmsgcore/wire"
)

// CryptoCodec is the external stream-cipher collaborator an IOQ defers
// to for decryption; see the crypto package for the richer interface
// (adding Encrypt) that concrete codecs implement.
type CryptoCodec = ioq.Codec

// Callbacks bundles the four user collaborators named in spec.md §2/§6.
type Callbacks struct {
	// Signal fires when the connection's signal work flag is set.
	Signal func(ioc *IOCOM)
	// ReceiveMsg is invoked on the IO core goroutine for each received
	// frame that is neither relayed nor an unmanaged one-off (mutex
	// released), and for each frame the failure cascade synthesizes
	// (mutex held).
	ReceiveMsg func(msg *wire.Msg)
	// UserMsg is invoked for messages the core does not itself own
	// (unmanaged sends looped back to the application).
	UserMsg func(msg *wire.Msg, unmanaged bool)
	// AltReady fires when the alternative bulk-I/O descriptor becomes
	// readable; the core never reads or writes it itself.
	AltReady func(ioc *IOCOM)
}

// Config configures one IOCOM.
type Config struct {
	Label     string
	Callbacks Callbacks
	Codec     CryptoCodec
	RxBufSize int
	TxBufSize int

	// Verbose gates extra log lines on the RX/TX path, standing in for
	// the original's DMsgDebugOpt (spec.md §9 supplemented feature).
	Verbose bool
	// Logger receives those lines; defaults to log.Default() if nil.
	Logger *log.Logger

	// MsgPool recycles outbound *wire.Msg allocations (NewTransaction,
	// synthesized failure frames, and every frame the writer flushes);
	// nil means allocate fresh every time.
	MsgPool *pool.MsgPool

	// AltFD is the optional alternative bulk-I/O descriptor (spec.md §1
	// "alt-ready"); nil means this connection has none and AltReady
	// never fires.
	AltFD *os.File
}

// IOCOM is one connection object: the unit of the transaction engine.
type IOCOM struct {
	label string
	cb    Callbacks
	codec CryptoCodec

	mu     sync.Mutex
	state0 *state.State
	wr     *state.Tree // transactions we created
	rd     *state.Tree // transactions the peer created
	msgidSeq uint64

	conn Transport
	rx   *frameReader
	tx   *frameWriter

	txq    *txQueue
	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	flags   workFlags
	errored error

	metricsHook func(delta int64)

	verbose bool
	logger  *log.Logger
	msgPool *pool.MsgPool

	altCh *blockio.Channel
}

type workFlags uint32

const (
	flagEOF workFlags = 1 << iota
	flagErrorLatched
	// flagSignal mirrors the original's SWORK: set by RaiseSignal from
	// any goroutine, cleared once Callbacks.Signal has run.
	flagSignal
	// flagAltReady mirrors ARWORK: set when the alt-ready descriptor
	// becomes readable, cleared once Callbacks.AltReady has run.
	flagAltReady
)

// New constructs an IOCOM around conn, ready to Run.
func New(conn Transport, cfg Config) *IOCOM {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	ioc := &IOCOM{
		label:   cfg.Label,
		cb:      cfg.Callbacks,
		codec:   cfg.Codec,
		conn:    conn,
		state0:  state.NewRoot(),
		wr:      state.NewTree(),
		rd:      state.NewTree(),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		verbose: cfg.Verbose,
		logger:  logger,
		msgPool: cfg.MsgPool,
	}
	ioc.rx = newFrameReader(cfg.RxBufSize)
	ioc.tx = newFrameWriter(conn, cfg.TxBufSize, cfg.MsgPool)
	ioc.txq = newTxQueue()
	if cfg.AltFD != nil {
		ioc.altCh = blockio.NewChannel(cfg.AltFD, ioc.NotifyAltReady)
	}
	return ioc
}

// RaiseSignal sets the signal work flag and wakes the core loop; safe to
// call from any goroutine (spec.md §6 dmsg_iocom_signal).
func (ioc *IOCOM) RaiseSignal() {
	ioc.mu.Lock()
	ioc.flags |= flagSignal
	ioc.mu.Unlock()
	ioc.wakeLoop()
}

// NotifyAltReady sets the alt-ready work flag and wakes the core loop;
// installed as the alt-I/O channel's readiness callback.
func (ioc *IOCOM) NotifyAltReady() {
	ioc.mu.Lock()
	ioc.flags |= flagAltReady
	ioc.mu.Unlock()
	ioc.wakeLoop()
}

// dispatchSignal runs Callbacks.Signal if SWORK is set, clearing the
// flag first so a signal raised while the callback runs is not lost.
func (ioc *IOCOM) dispatchSignal() {
	ioc.mu.Lock()
	fire := ioc.flags&flagSignal != 0
	ioc.flags &^= flagSignal
	ioc.mu.Unlock()
	if fire && ioc.cb.Signal != nil {
		ioc.cb.Signal(ioc)
	}
}

// dispatchAltReady runs Callbacks.AltReady if ARWORK is set.
func (ioc *IOCOM) dispatchAltReady() {
	ioc.mu.Lock()
	fire := ioc.flags&flagAltReady != 0
	ioc.flags &^= flagAltReady
	ioc.mu.Unlock()
	if fire && ioc.cb.AltReady != nil {
		ioc.cb.AltReady(ioc)
	}
}

// Label returns the connection's diagnostic label (Config.Label), which
// supplements the protocol's purely numeric identity and prefixes
// verbose log lines.
func (ioc *IOCOM) Label() string { return ioc.label }

// SetMetricsHook installs a callback invoked with +1 each time a dynamic
// state is created and -1 each time one is torn down after both sides
// have sent DELETE, standing in for the reference
// implementation's process-wide dmsg_state_count (spec.md §9 "Global
// state"), scoped per connection instead of per process.
func (ioc *IOCOM) SetMetricsHook(fn func(delta int64)) { ioc.metricsHook = fn }

func (ioc *IOCOM) bumpStateCount(delta int64) {
	if ioc.metricsHook != nil {
		ioc.metricsHook(delta)
	}
}

// logf emits a verbose-gated diagnostic line, mirroring the teacher's
// control/debug.go-gated probes.
func (ioc *IOCOM) logf(format string, args ...any) {
	if !ioc.verbose {
		return
	}
	ioc.logger.Printf("["+ioc.label+"] "+format, args...)
}

// allocMsg returns a zeroed *wire.Msg, drawing from msgPool when one is
// configured.
func (ioc *IOCOM) allocMsg() *wire.Msg {
	if ioc.msgPool != nil {
		return ioc.msgPool.Get()
	}
	return &wire.Msg{}
}

// nextMsgID returns a fresh, monotonically increasing local msgid.
func (ioc *IOCOM) nextMsgID() uint64 {
	ioc.msgidSeq++
	return ioc.msgidSeq
}

// Run drives the IO core loop until ctx is cancelled or EOF is reached.
// Exactly one goroutine must call Run for a given IOCOM's lifetime; all
// IOQ cursor movement happens here. State trees are mutated under ioc.mu,
// both here and by NewTransaction/SendMessage on the caller's goroutine.
func (ioc *IOCOM) Run(ctx context.Context) error {
	defer close(ioc.doneCh)
	ioc.rx.start(ioc.conn)
	if ioc.altCh != nil {
		go ioc.altCh.Run(ctx)
	}

	// The original calls signal_func at least once when first looped,
	// before ever seeing real work.
	if ioc.cb.Signal != nil {
		ioc.cb.Signal(ioc)
	}

	for {
		if ioc.flags&flagEOF != 0 {
			ioc.drainOnEOF()
			return ioc.errored
		}
		select {
		case <-ctx.Done():
			ioc.Close()
			continue
		case <-ioc.stopCh:
			ioc.flags |= flagEOF
			continue
		case res := <-ioc.rx.readCh:
			ioc.handleReadResult(res)
		case <-ioc.wake:
		}

		ioc.dispatchSignal()
		ioc.dispatchAltReady()
		ioc.runWriteWork()
	}
}

// Stop requests the loop terminate on its next iteration, synthesizing
// link failure on every open transaction.
func (ioc *IOCOM) Stop() {
	select {
	case <-ioc.stopCh:
	default:
		close(ioc.stopCh)
	}
	ioc.wakeLoop()
}

// Close is Stop's internal counterpart invoked from within the loop
// (e.g. on ctx cancellation).
func (ioc *IOCOM) Close() {
	ioc.flags |= flagEOF
}

// Done returns a channel closed once Run has returned.
func (ioc *IOCOM) Done() <-chan struct{} { return ioc.doneCh }

func (ioc *IOCOM) wakeLoop() {
	select {
	case ioc.wake <- struct{}{}:
	default:
	}
}

// State0 exposes the root sentinel, e.g. for tests asserting refcounts.
func (ioc *IOCOM) State0() *state.State { return ioc.state0 }

// lostLinkErr names the terminal error surfaced to the application once
// the failure cascade has finished draining the connection.
func lostLinkErr(cause error) error {
	if cause == nil {
		return fmt.Errorf("iocom: lost link")
	}
	return fmt.Errorf("iocom: lost link: %w", cause)
}
