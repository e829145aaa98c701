package walletsession

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var (
	walletA = Wallet{Chain: ChainBase, Address: "0x00000000000000000000000000000000000000a1", Label: "A", SignerRef: "local"}
	walletB = Wallet{Chain: ChainBase, Address: "0x00000000000000000000000000000000000000b2", Label: "B", SignerRef: "local"}
	walletS = Wallet{Chain: ChainSolana, Address: "So11111111111111111111111111111111111111112", SignerRef: "phantom"}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustAdd(t *testing.T, s *Session, wallets ...Wallet) {
	t.Helper()
	for _, w := range wallets {
		if _, err := s.AddWallet(context.Background(), w); err != nil {
			t.Fatalf("AddWallet(%s): %v", w.Key(), err)
		}
	}
}

func approve(ch Challenge) *Signature {
	return &Signature{Wallet: ch.Wallet.Key(), Message: ch.Message, Bytes: []byte("signed")}
}

// fakeSigner approves every challenge unless answer is set.
type fakeSigner struct {
	calls  atomic.Int32
	answer func(ctx context.Context, ch Challenge) (*Signature, error)
}

func (f *fakeSigner) Challenge(ctx context.Context, ch Challenge) (*Signature, error) {
	f.calls.Add(1)
	if f.answer == nil {
		return approve(ch), nil
	}
	return f.answer(ctx, ch)
}

// gatedSigner blocks every challenge until release is closed.
func gatedSigner(release <-chan struct{}) *fakeSigner {
	return &fakeSigner{answer: func(ctx context.Context, ch Challenge) (*Signature, error) {
		select {
		case <-release:
			return approve(ch), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
}

// queueModal hands every presented prompt to the test.
type queueModal struct {
	presented atomic.Int32
	prompts   chan *Prompt
}

func newQueueModal() *queueModal {
	return &queueModal{prompts: make(chan *Prompt, 8)}
}

func (m *queueModal) Present(p *Prompt) {
	m.presented.Add(1)
	m.prompts <- p
}

func (m *queueModal) next(t *testing.T) *Prompt {
	t.Helper()
	select {
	case p := <-m.prompts:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("modal was not presented")
		return nil
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (r *eventRecorder) record(e SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []SessionEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *eventRecorder) options() []Option {
	var opts []Option
	for _, typ := range []SessionEventType{
		SessionEventUnlockAttempt, SessionEventUnlocked, SessionEventUnlockFailed,
		SessionEventLocked, SessionEventWalletAdded, SessionEventWalletRemoved,
	} {
		opts = append(opts, WithEventCallback(typ, r.record))
	}
	return opts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waiters(s *Session) int {
	info, ok := s.Broker().Pending()
	if !ok {
		return 0
	}
	return info.Waiters
}

type connectResult struct {
	wallet Wallet
	err    error
}

func goConnect(ctx context.Context, s *Session) <-chan connectResult {
	out := make(chan connectResult, 1)
	go func() {
		w, err := s.Connect(ctx)
		out <- connectResult{w, err}
	}()
	return out
}

func receive(t *testing.T, ch <-chan connectResult) connectResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not return")
		return connectResult{}
	}
}

// memPersister is an in-memory Persister with injectable failures.
type memPersister struct {
	mu       sync.Mutex
	wallets  []Wallet
	failSave error
}

func (m *memPersister) Load(context.Context) ([]Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Wallet(nil), m.wallets...), nil
}

func (m *memPersister) Save(_ context.Context, w Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.wallets = append(m.wallets, w)
	return nil
}

func (m *memPersister) Delete(_ context.Context, key WalletKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.wallets {
		if w.Key() == key {
			m.wallets = append(m.wallets[:i], m.wallets[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memPersister) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets = nil
	return nil
}
