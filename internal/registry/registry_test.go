package registry

import (
	"errors"
	"math"
	"testing"

	"github.com/nexusyield/yvm/internal/types"
)

func pool(name string, apy float64) types.Pool {
	return types.Pool{
		ProviderID: "sim",
		Name:       name,
		Token0:     "ATOM",
		Token1:     "USDC",
		APY:        apy,
	}
}

func TestUpsert_AndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Upsert(pool("ATOM-USDC", 0.12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.Get("ATOM-USDC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.APY != 0.12 {
		t.Errorf("expected apy 0.12, got %f", got.APY)
	}
}

func TestUpsert_RejectsIncompleteDefinition(t *testing.T) {
	r := NewRegistry()

	tests := []types.Pool{
		{},
		{Name: "A", ProviderID: "sim", Token0: "ATOM"},
		{Name: "A", Token0: "ATOM", Token1: "USDC"},
	}
	for _, p := range tests {
		if err := r.Upsert(p); !errors.Is(err, ErrInvalidPool) {
			t.Errorf("expected ErrInvalidPool for %+v, got %v", p, err)
		}
	}
}

func TestUpsert_IdentityImmutable(t *testing.T) {
	r := NewRegistry()
	if err := r.Upsert(pool("ATOM-USDC", 0.12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed := pool("ATOM-USDC", 0.15)
	changed.Token1 = "OSMO"
	if err := r.Upsert(changed); !errors.Is(err, ErrInvalidPool) {
		t.Errorf("expected ErrInvalidPool for identity change, got %v", err)
	}

	// A plain APY refresh through Upsert is allowed.
	if err := r.Upsert(pool("ATOM-USDC", 0.15)); err != nil {
		t.Errorf("unexpected error on apy refresh: %v", err)
	}
	apy, _ := r.APYOf("ATOM-USDC")
	if apy != 0.15 {
		t.Errorf("expected refreshed apy 0.15, got %f", apy)
	}
}

func TestListPools_SortedByName(t *testing.T) {
	r := NewRegistry()
	names := []string{"OSMO-USDC", "ATOM-USDC", "ELYS-USDC"}
	for _, name := range names {
		if err := r.Upsert(pool(name, 0.1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	pools := r.ListPools()
	expected := []string{"ATOM-USDC", "ELYS-USDC", "OSMO-USDC"}
	if len(pools) != len(expected) {
		t.Fatalf("expected %d pools, got %d", len(expected), len(pools))
	}
	for idx, name := range expected {
		if pools[idx].Name != name {
			t.Errorf("expected pools[%d]=%s, got %s", idx, name, pools[idx].Name)
		}
	}
}

func TestSetAPY_Validation(t *testing.T) {
	r := NewRegistry()
	if err := r.Upsert(pool("ATOM-USDC", 0.1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.SetAPY("ATOM-USDC", -0.1); !errors.Is(err, ErrInvalidAPY) {
		t.Errorf("expected ErrInvalidAPY for negative apy, got %v", err)
	}
	if err := r.SetAPY("ATOM-USDC", math.NaN()); !errors.Is(err, ErrInvalidAPY) {
		t.Errorf("expected ErrInvalidAPY for NaN, got %v", err)
	}
	if err := r.SetAPY("missing", 0.2); !errors.Is(err, ErrPoolNotFound) {
		t.Errorf("expected ErrPoolNotFound, got %v", err)
	}

	if err := r.SetAPY("ATOM-USDC", 0.2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	apy, err := r.APYOf("ATOM-USDC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if apy != 0.2 {
		t.Errorf("expected apy 0.2, got %f", apy)
	}
}

func TestAPYOf_Missing(t *testing.T) {
	r := NewRegistry()
	if _, err := r.APYOf("missing"); !errors.Is(err, ErrPoolNotFound) {
		t.Errorf("expected ErrPoolNotFound, got %v", err)
	}
}
