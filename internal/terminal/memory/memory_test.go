package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
	"github.com/shopspring/decimal"
)

func testKOT(id string, table int) terminal.KOT {
	return terminal.KOT{
		ID:          id,
		DiningType:  enum.DiningTypeDineIn,
		TableNumber: table,
		Items: []terminal.LineItem{
			{ProductID: "p1", Name: "Pizza", Price: decimal.NewFromInt(200), Quantity: 2},
		},
		Status:    enum.KOTStatusPending,
		CreatedAt: time.Now(),
	}
}

func TestKOTRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	kot := testKOT("KOT-1", 5)
	if err := s.CreateKOT(ctx, kot); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetKOT(ctx, "KOT-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TableNumber != 5 || len(got.Items) != 1 {
		t.Errorf("unexpected KOT: %+v", got)
	}

	got.OrderCreated = true
	if err := s.UpdateKOT(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.GetKOT(ctx, "KOT-1")
	if !again.OrderCreated {
		t.Error("update not persisted")
	}
}

func TestGetMissingKOT(t *testing.T) {
	s := New()
	_, err := s.GetKOT(context.Background(), "nope")
	if !errors.Is(err, terminal.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteKOTIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateKOT(ctx, testKOT("KOT-1", 5)); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteKOT(ctx, "KOT-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	// A second delete of the same id must not error (duplicate clicks).
	if err := s.DeleteKOT(ctx, "KOT-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestStoredKOTDoesNotAliasCallerSlice(t *testing.T) {
	ctx := context.Background()
	s := New()
	kot := testKOT("KOT-1", 5)
	if err := s.CreateKOT(ctx, kot); err != nil {
		t.Fatal(err)
	}

	kot.Items[0].Quantity = 99

	got, _ := s.GetKOT(ctx, "KOT-1")
	if got.Items[0].Quantity != 2 {
		t.Errorf("stored items mutated through caller slice: qty=%d", got.Items[0].Quantity)
	}
}

func TestSnapshotSplitsTakeaway(t *testing.T) {
	ctx := context.Background()
	s := New()

	dine := terminal.Order{ID: "DINE-1", DiningType: enum.DiningTypeDineIn, TableNumber: 2, Status: enum.OrderStatusPending, CreatedAt: time.Now()}
	take := terminal.Order{ID: "TAKE-1", DiningType: enum.DiningTypeTakeaway, Status: enum.OrderStatusPending, CreatedAt: time.Now()}
	if err := s.CreateOrder(ctx, dine); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateOrder(ctx, take); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Orders) != 1 || snap.Orders[0].ID != "DINE-1" {
		t.Errorf("dine-in orders: %+v", snap.Orders)
	}
	if len(snap.TakeawayOrders) != 1 || snap.TakeawayOrders[0].ID != "TAKE-1" {
		t.Errorf("takeaway orders: %+v", snap.TakeawayOrders)
	}
}

func TestReplaceSnapshotIsWholesale(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateKOT(ctx, testKOT("KOT-local", 3)); err != nil {
		t.Fatal(err)
	}

	remote := terminal.Snapshot{
		KOTs: []terminal.KOT{testKOT("KOT-remote", 7)},
		TakeawayOrders: []terminal.Order{
			{ID: "TAKE-9", DiningType: enum.DiningTypeTakeaway, Status: enum.OrderStatusPending, CreatedAt: time.Now()},
		},
	}
	if err := s.ReplaceSnapshot(ctx, remote); err != nil {
		t.Fatalf("replace: %v", err)
	}

	// Local-only state is gone: last writer wins, no merge.
	if _, err := s.GetKOT(ctx, "KOT-local"); !errors.Is(err, terminal.ErrNotFound) {
		t.Error("local KOT survived wholesale replace")
	}
	if _, err := s.GetKOT(ctx, "KOT-remote"); err != nil {
		t.Errorf("remote KOT missing after replace: %v", err)
	}
	if _, err := s.GetOrder(ctx, "TAKE-9"); err != nil {
		t.Errorf("remote takeaway order missing after replace: %v", err)
	}
}
