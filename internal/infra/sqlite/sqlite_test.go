package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetpool/budgetpool/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testEntry(accountID, id string, kind domain.EntryKind, amount string) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:        id,
		AccountID: accountID,
		Kind:      kind,
		Amount:    dec(amount),
		Actor:     domain.Actor{ID: "admin-1", Role: domain.RoleAdmin},
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}
}

// ─── Migration Test ─────────────────────────────────────────────────────────

func TestMigrations_TablesExist(t *testing.T) {
	db := newTestDB(t)

	tables := []string{"ledger_entries", "pool_additions", "activity_logs", "catalog_items"}
	for _, table := range tables {
		var count int
		err := db.db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found in database", table)
		}
	}
}

// ─── Ledger Entry Operations ────────────────────────────────────────────────

func TestAppendEntryAndHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry := testEntry("acct-1", "e1", domain.EntryAllocation, "125.50")
	entry.Note = "Q3 budget"
	if err := db.AppendEntry(ctx, entry, 0); err != nil {
		t.Fatalf("AppendEntry() error: %v", err)
	}

	history, version, err := db.History(ctx, "acct-1")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	got := history[0]
	if got.ID != "e1" || got.Kind != domain.EntryAllocation {
		t.Errorf("entry = %+v, want id e1 kind allocation", got)
	}
	if !got.Amount.Equal(dec("125.50")) {
		t.Errorf("Amount = %s, want 125.50", got.Amount)
	}
	if got.Note != "Q3 budget" {
		t.Errorf("Note = %q, want %q", got.Note, "Q3 budget")
	}
	if got.Actor.Role != domain.RoleAdmin {
		t.Errorf("Actor.Role = %s, want admin", got.Actor.Role)
	}
	if !got.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, entry.Timestamp)
	}
}

func TestAppendEntry_PurchaseItemsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry := testEntry("acct-1", "p1", domain.EntryPurchase, "11.20")
	entry.Items = []domain.LineItem{
		{Name: "pen", UnitPrice: dec("1.25"), Quantity: 4},
		{Name: "notebook", UnitPrice: dec("3.10"), Quantity: 2},
	}
	if err := db.AppendEntry(ctx, entry, 0); err != nil {
		t.Fatal(err)
	}

	history, _, err := db.History(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	items := history[0].Items
	if len(items) != 2 {
		t.Fatalf("items length = %d, want 2", len(items))
	}
	if items[0].Name != "pen" || items[0].Quantity != 4 || !items[0].UnitPrice.Equal(dec("1.25")) {
		t.Errorf("item 0 = %+v, want pen 1.25 x4", items[0])
	}
}

func TestAppendEntry_StaleVersionConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.AppendEntry(ctx, testEntry("acct-1", "e1", domain.EntryAllocation, "100"), 0); err != nil {
		t.Fatal(err)
	}

	// Second append at the same version must fail: the history moved on.
	err := db.AppendEntry(ctx, testEntry("acct-1", "e2", domain.EntryAllocation, "100"), 0)
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("stale append error = %v, want ErrConcurrentModification", err)
	}

	// At the current version it succeeds.
	if err := db.AppendEntry(ctx, testEntry("acct-1", "e2", domain.EntryAllocation, "100"), 1); err != nil {
		t.Fatalf("AppendEntry() at current version error: %v", err)
	}
}

func TestHistory_AppendOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := testEntry("acct-1", fmt.Sprintf("e%d", i), domain.EntryAllocation, "10")
		if err := db.AppendEntry(ctx, e, int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	history, version, err := db.History(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if version != 5 {
		t.Errorf("version = %d, want 5", version)
	}
	for i, e := range history {
		if e.ID != fmt.Sprintf("e%d", i) {
			t.Errorf("position %d holds %s, want e%d", i, e.ID, i)
		}
	}
}

func TestHistory_UnknownAccount(t *testing.T) {
	db := newTestDB(t)
	history, version, err := db.History(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("History(ghost) error: %v", err)
	}
	if version != 0 || len(history) != 0 {
		t.Errorf("unknown account: version = %d, entries = %d; want 0, 0", version, len(history))
	}
}

func TestAccounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.AppendEntry(ctx, testEntry("beta", "e1", domain.EntryAllocation, "10"), 0)
	db.AppendEntry(ctx, testEntry("alpha", "e2", domain.EntryAllocation, "10"), 0)

	accounts, err := db.Accounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 || accounts[0] != "alpha" || accounts[1] != "beta" {
		t.Errorf("Accounts() = %v, want [alpha beta]", accounts)
	}
}

// ─── Pool Operations ────────────────────────────────────────────────────────

func TestPoolAdditions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, amount := range []string{"1000", "250.75"} {
		add := domain.PoolAddition{
			ID:        fmt.Sprintf("f%d", i),
			Amount:    dec(amount),
			Actor:     domain.Actor{ID: "admin-1", Role: domain.RoleAdmin},
			Note:      "seed",
			Timestamp: time.Now().UTC(),
		}
		if err := db.AppendPoolAddition(ctx, add); err != nil {
			t.Fatalf("AppendPoolAddition() error: %v", err)
		}
	}

	adds, err := db.PoolAdditions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(adds) != 2 {
		t.Fatalf("additions = %d, want 2", len(adds))
	}
	if adds[0].ID != "f0" || adds[1].ID != "f1" {
		t.Errorf("order = [%s %s], want [f0 f1]", adds[0].ID, adds[1].ID)
	}
	if !adds[1].Amount.Equal(dec("250.75")) {
		t.Errorf("amount = %s, want 250.75", adds[1].Amount)
	}
}

// ─── Activity Log ───────────────────────────────────────────────────────────

func TestActivityLog_RecentNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	actions := []domain.ActivityAction{
		domain.ActionFundsAdded,
		domain.ActionAllocationMade,
		domain.ActionPurchaseCompleted,
	}
	for i, action := range actions {
		err := db.Record(ctx, domain.ActivityLogEntry{
			ID:        fmt.Sprintf("log%d", i),
			Action:    action,
			Details:   map[string]string{"amount": "100"},
			Actor:     domain.Actor{ID: "admin-1", Role: domain.RoleAdmin},
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}

	entries, err := db.RecentActivity(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (limit)", len(entries))
	}
	if entries[0].Action != domain.ActionPurchaseCompleted {
		t.Errorf("newest action = %s, want purchase_completed", entries[0].Action)
	}
	if entries[0].Details["amount"] != "100" {
		t.Errorf("details = %v, want amount=100", entries[0].Details)
	}
}

// ─── Catalog ────────────────────────────────────────────────────────────────

func TestCatalogItems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	item := domain.CatalogItem{ID: "it-1", Name: "stapler", Price: dec("12.50")}
	if err := db.UpsertCatalogItem(ctx, item); err != nil {
		t.Fatalf("UpsertCatalogItem() error: %v", err)
	}

	got, err := db.GetCatalogItem(ctx, "it-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "stapler" || !got.Price.Equal(dec("12.50")) {
		t.Errorf("item = %+v, want stapler 12.50", got)
	}

	// Upsert updates in place.
	item.Price = dec("13.00")
	if err := db.UpsertCatalogItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetCatalogItem(ctx, "it-1")
	if !got.Price.Equal(dec("13.00")) {
		t.Errorf("price after upsert = %s, want 13.00", got.Price)
	}

	db.UpsertCatalogItem(ctx, domain.CatalogItem{ID: "it-2", Name: "binder", Price: dec("4.25")})
	items, err := db.ListCatalogItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Name != "binder" {
		t.Errorf("ListCatalogItems() = %v, want binder first", items)
	}

	if err := db.DeleteCatalogItem(ctx, "it-1"); err != nil {
		t.Fatal(err)
	}
	items, _ = db.ListCatalogItems(ctx)
	if len(items) != 1 {
		t.Errorf("items after delete = %d, want 1", len(items))
	}
}
