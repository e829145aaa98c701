package tui

import (
	"context"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xWizop/incubator-sub002"
)

var (
	walletA = walletsession.Wallet{Chain: walletsession.ChainBase, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Label: "usdc"}
	walletS = walletsession.Wallet{Chain: walletsession.ChainSolana, Address: "So11111111111111111111111111111111111111112"}
)

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func send(m model, msgs ...tea.Msg) model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(model)
	}
	return m
}

func TestModelNavigation(t *testing.T) {
	prompt := &walletsession.Prompt{ID: "p1", Wallets: []walletsession.Wallet{walletA, walletS}}

	tests := []struct {
		name       string
		msgs       []tea.Msg
		wantChosen *walletsession.Wallet
		wantCancel bool
	}{
		{"enter picks first", []tea.Msg{key(tea.KeyEnter)}, &walletA, false},
		{"down then enter", []tea.Msg{key(tea.KeyDown), key(tea.KeyEnter)}, &walletS, false},
		{"j moves down", []tea.Msg{runes("j"), key(tea.KeyEnter)}, &walletS, false},
		{"cursor stops at end", []tea.Msg{key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyEnter)}, &walletS, false},
		{"up at top stays", []tea.Msg{key(tea.KeyUp), key(tea.KeyEnter)}, &walletA, false},
		{"k moves up", []tea.Msg{key(tea.KeyDown), runes("k"), key(tea.KeyEnter)}, &walletA, false},
		{"esc cancels", []tea.Msg{key(tea.KeyEsc)}, nil, true},
		{"q cancels", []tea.Msg{runes("q")}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := send(newModel(prompt), tt.msgs...)
			assert.Equal(t, tt.wantCancel, m.cancelled)
			if tt.wantChosen == nil {
				assert.Nil(t, m.chosen)
				return
			}
			require.NotNil(t, m.chosen)
			assert.Equal(t, tt.wantChosen.Key(), m.chosen.Key())
		})
	}
}

func TestModelEmptyList(t *testing.T) {
	m := send(newModel(&walletsession.Prompt{ID: "p1"}), key(tea.KeyEnter))
	assert.Nil(t, m.chosen)
	assert.Contains(t, m.View(), "No wallets registered.")
}

func TestModelView(t *testing.T) {
	m := newModel(&walletsession.Prompt{ID: "p1", Wallets: []walletsession.Wallet{walletA, walletS}})
	view := m.View()

	assert.Contains(t, view, "Connect a wallet")
	assert.Contains(t, view, walletA.DisplayName())
	assert.Contains(t, view, "solana")
	assert.Contains(t, view, "esc cancel")

	m = send(m, dismissedMsg{})
	assert.True(t, m.dismissed)
	assert.Empty(t, m.View())
}

func TestPresentLeavesSettledPrompt(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	modal := NewModal(WithInput(nil), WithOutput(io.Discard), WithLogger(logger))

	session, err := walletsession.New(
		walletsession.WithLogger(logger),
		walletsession.WithSigner(walletsession.SignerFunc(func(ctx context.Context, ch walletsession.Challenge) (*walletsession.Signature, error) {
			return &walletsession.Signature{Wallet: ch.Wallet.Key(), Message: ch.Message, Bytes: []byte("ok")}, nil
		})),
		walletsession.WithModal(walletsession.ModalFunc(func(p *walletsession.Prompt) {
			// Settled before the program starts; it must quit without
			// overriding the choice.
			p.Resolve(p.Wallets[len(p.Wallets)-1])
			modal.Present(p)
		})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	for _, w := range []walletsession.Wallet{walletA, walletS} {
		_, err := session.AddWallet(context.Background(), w)
		require.NoError(t, err)
	}

	got, err := session.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, walletS.Key(), got.Key())
}
