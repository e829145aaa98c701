package walletsession

import (
	"errors"
	"slices"
	"testing"
)

func TestRegistry_AddRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	w := Wallet{Chain: ChainEthereum, Address: "0xAbC0000000000000000000000000000000000001"}

	if _, err := r.Add(w); err != nil {
		t.Fatalf("Add: %v", err)
	}

	dup := Wallet{Chain: ChainEthereum, Address: "0xabc0000000000000000000000000000000000001", Label: "again"}
	if _, err := r.Add(dup); !errors.Is(err, ErrDuplicateWallet) {
		t.Errorf("Add duplicate error = %v, want ErrDuplicateWallet", err)
	}

	other := Wallet{Chain: ChainBase, Address: w.Address}
	if _, err := r.Add(other); err != nil {
		t.Errorf("same address on another chain should be accepted: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	a := Wallet{Chain: ChainSolana, Address: "A1"}
	b := Wallet{Chain: ChainSolana, Address: "B2"}
	c := Wallet{Chain: ChainSolana, Address: "C3"}
	for _, w := range []Wallet{a, b, c} {
		if _, err := r.Add(w); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	removed, err := r.Remove(ChainSolana, "B2")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed != b {
		t.Errorf("removed = %+v, want %+v", removed, b)
	}
	if _, err := r.Remove(ChainSolana, "B2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove error = %v, want ErrNotFound", err)
	}

	got, ok := r.Get(c.Key())
	if !ok || got != c {
		t.Errorf("Get after removal = %+v, %v", got, ok)
	}
	if want := []Wallet{a, c}; !slices.Equal(slices.Collect(r.List()), want) {
		t.Errorf("List() = %v, want %v", slices.Collect(r.List()), want)
	}
}

func TestRegistry_ListOrderAndFilter(t *testing.T) {
	r := NewRegistry()
	wallets := []Wallet{
		{Chain: ChainBase, Address: "0x01"},
		{Chain: ChainSolana, Address: "S1"},
		{Chain: ChainArbitrum, Address: "0x02"},
		{Chain: ChainBase, Address: "0x03"},
	}
	for _, w := range wallets {
		if _, err := r.Add(w); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	tests := []struct {
		name   string
		chains []Chain
		want   []Wallet
	}{
		{"all", nil, wallets},
		{"base", []Chain{ChainBase}, []Wallet{wallets[0], wallets[3]}},
		{"evm", []Chain{ChainBase, ChainArbitrum}, []Wallet{wallets[0], wallets[2], wallets[3]}},
		{"none", []Chain{ChainEthereum}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := r.List(tt.chains...)
			first := slices.Collect(seq)
			second := slices.Collect(seq)
			if !slices.Equal(first, tt.want) {
				t.Errorf("List() = %v, want %v", first, tt.want)
			}
			if !slices.Equal(first, second) {
				t.Error("sequence should be restartable")
			}
		})
	}
}

func TestRegistry_ListStopsEarly(t *testing.T) {
	r := NewRegistry()
	for _, addr := range []string{"A", "B", "C"} {
		if _, err := r.Add(Wallet{Chain: ChainSolana, Address: addr}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	var seen []string
	for w := range r.List() {
		seen = append(seen, w.Address)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"A", "B"}) {
		t.Errorf("seen = %v", seen)
	}
}
