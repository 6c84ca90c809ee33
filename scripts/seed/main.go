// Command seed loads a demo tenant: a chart of accounts with every posting
// mapping, two items, and one purchase and one sale taken through payment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/app"
	"github.com/ledgercore/ledgercore/internal/coordinator"
	"github.com/ledgercore/ledgercore/internal/masterdata"
	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/procurement"
	"github.com/ledgercore/ledgercore/internal/sales"
	"github.com/ledgercore/ledgercore/internal/store"
)

var (
	demoTenant   = uuid.MustParse("7b0c1d2e-0000-4000-8000-000000000001")
	demoCustomer = uuid.MustParse("7b0c1d2e-0000-4000-8000-000000000002")
	demoSupplier = uuid.MustParse("7b0c1d2e-0000-4000-8000-000000000003")
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
	fresh, err := seedParties(ctx, pool)
	if err != nil {
		logger.Error("seed parties", slog.Any("error", err))
		os.Exit(1)
	}
	if !fresh {
		logger.Info("demo tenant already seeded", slog.String("tenant_id", demoTenant.String()))
		return
	}

	ledger := coordinator.New(store.NewPostgresStore(pool, cfg.TxOptions()), masterdata.NewPostgresDirectory(pool), coordinator.Config{
		OperationTimeout: cfg.OperationTimeout,
		DefaultTaxRate:   cfg.TaxRate(),
	}, logger, nil)
	demo := demoIDs{
		Actor:    coordinator.Actor{TenantID: demoTenant, ActorID: cfg.SystemActor()},
		Customer: demoCustomer,
		Supplier: demoSupplier,
	}
	summary, err := seedLedger(ctx, ledger, demo, time.Now().UTC())
	if err != nil {
		logger.Error("seed ledger", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed complete",
		slog.String("tenant_id", demoTenant.String()),
		slog.String("purchase_order", summary.PurchaseOrder),
		slog.String("sales_order", summary.SalesOrder),
	)
}

// seedParties inserts the tenant and its counterparties. It reports false when
// the tenant already existed.
func seedParties(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	tag, err := pool.Exec(ctx, `INSERT INTO tenants (id, name, default_currency) VALUES ($1, 'Demo Trading Ltd', 'ILS') ON CONFLICT (id) DO NOTHING`, demoTenant)
	if err != nil {
		return false, fmt.Errorf("insert tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := pool.Exec(ctx, `INSERT INTO customers (id, tenant_id, name) VALUES ($1, $2, 'Harbor Retail')`, demoCustomer, demoTenant); err != nil {
		return false, fmt.Errorf("insert customer: %w", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO suppliers (id, tenant_id, name) VALUES ($1, $2, 'Northwind Wholesale')`, demoSupplier, demoTenant); err != nil {
		return false, fmt.Errorf("insert supplier: %w", err)
	}
	return true, nil
}

type demoIDs struct {
	Actor    coordinator.Actor
	Customer uuid.UUID
	Supplier uuid.UUID
}

type seedSummary struct {
	Accounts      map[string]uuid.UUID
	PurchaseOrder string
	SalesOrder    string
}

var chart = []struct {
	code string
	name string
	typ  accounting.AccountType
	keys []string
}{
	{"1000", "Bank", accounting.AccountTypeAsset, []string{accounting.KeyCashBank}},
	{"1100", "Accounts Receivable", accounting.AccountTypeAsset, []string{accounting.KeySalesReceivable}},
	{"1200", "Input VAT", accounting.AccountTypeAsset, []string{accounting.KeyPurchaseTax}},
	{"1300", "Inventory", accounting.AccountTypeAsset, []string{accounting.KeyPurchaseInventory, accounting.KeyInventoryAsset}},
	{"2000", "Accounts Payable", accounting.AccountTypeLiability, []string{accounting.KeyPurchasePayable}},
	{"2100", "Output VAT", accounting.AccountTypeLiability, []string{accounting.KeySalesTax}},
	{"3000", "Owner Capital", accounting.AccountTypeEquity, nil},
	{"4000", "Sales Revenue", accounting.AccountTypeRevenue, []string{accounting.KeySalesRevenue}},
	{"4900", "Inventory Gains", accounting.AccountTypeRevenue, []string{accounting.KeyInventoryGain}},
	{"5000", "Cost of Goods Sold", accounting.AccountTypeExpense, []string{accounting.KeyCostOfSales}},
	{"5900", "Inventory Losses", accounting.AccountTypeExpense, []string{accounting.KeyInventoryLoss}},
}

func seedLedger(ctx context.Context, ledger *coordinator.Coordinator, demo demoIDs, now time.Time) (seedSummary, error) {
	summary := seedSummary{Accounts: make(map[string]uuid.UUID)}
	for _, a := range chart {
		account, err := ledger.CreateAccount(ctx, coordinator.CreateAccount{Actor: demo.Actor, Code: a.code, Name: a.name, Type: a.typ})
		if err != nil {
			return summary, fmt.Errorf("account %s: %w", a.code, err)
		}
		summary.Accounts[a.code] = account.ID
		for _, key := range a.keys {
			if err := ledger.MapAccount(ctx, coordinator.MapAccount{Actor: demo.Actor, Key: key, AccountID: account.ID}); err != nil {
				return summary, fmt.Errorf("map %s: %w", key, err)
			}
		}
	}

	capital := decimal.NewFromInt(5000)
	if _, err := ledger.PostManualEntry(ctx, coordinator.PostManualEntry{
		Actor: demo.Actor,
		Date:  now,
		Memo:  "Opening capital",
		Lines: []coordinator.ManualLine{
			{AccountID: summary.Accounts["1000"], Debit: capital},
			{AccountID: summary.Accounts["3000"], Credit: capital},
		},
	}); err != nil {
		return summary, fmt.Errorf("opening entry: %w", err)
	}

	widget, err := ledger.CreateItem(ctx, coordinator.CreateItem{
		Actor: demo.Actor, SKU: "WID-100", Name: "Widget", UnitPrice: decimal.NewFromInt(12),
		UnitCost: decimal.RequireFromString("7.50"), ReorderPoint: decimal.NewFromInt(5),
	})
	if err != nil {
		return summary, fmt.Errorf("item WID-100: %w", err)
	}
	gadget, err := ledger.CreateItem(ctx, coordinator.CreateItem{
		Actor: demo.Actor, SKU: "GAD-200", Name: "Gadget", UnitPrice: decimal.NewFromInt(40),
		UnitCost: decimal.NewFromInt(22), ReorderPoint: decimal.NewFromInt(3),
	})
	if err != nil {
		return summary, fmt.Errorf("item GAD-200: %w", err)
	}

	po, err := ledger.CreatePurchaseOrder(ctx, coordinator.CreatePurchaseOrder{
		Actor: demo.Actor, SupplierID: demo.Supplier, OrderDate: now, Notes: "Initial stock",
		Lines: []coordinator.OrderLine{
			{ItemID: widget.ID, Quantity: decimal.NewFromInt(20), UnitPrice: widget.UnitCost},
			{ItemID: gadget.ID, Quantity: decimal.NewFromInt(4), UnitPrice: gadget.UnitCost},
		},
	})
	if err != nil {
		return summary, fmt.Errorf("purchase order: %w", err)
	}
	summary.PurchaseOrder = po.Number
	if _, err := ledger.ConfirmPurchaseOrder(ctx, coordinator.ConfirmPurchaseOrder{Actor: demo.Actor, OrderID: po.ID}); err != nil {
		return summary, fmt.Errorf("confirm %s: %w", po.Number, err)
	}
	receipt := make([]procurement.ReceiveLine, 0, len(po.Lines))
	for _, line := range po.Lines {
		receipt = append(receipt, procurement.ReceiveLine{LineID: line.ID, Qty: line.Quantity, UnitCost: line.UnitCost})
	}
	received, err := ledger.ReceivePurchaseOrder(ctx, coordinator.ReceivePurchaseOrder{Actor: demo.Actor, OrderID: po.ID, ReceivedAt: now, Lines: receipt})
	if err != nil {
		return summary, fmt.Errorf("receive %s: %w", po.Number, err)
	}
	if _, err := ledger.PaySupplier(ctx, coordinator.PaySupplier{
		Actor: demo.Actor, OrderID: po.ID, Amount: received.Order.Total, Method: "bank_transfer", PaidAt: now,
	}); err != nil {
		return summary, fmt.Errorf("pay %s: %w", po.Number, err)
	}

	so, err := ledger.CreateSalesOrder(ctx, coordinator.CreateSalesOrder{
		Actor: demo.Actor, CustomerID: demo.Customer, OrderDate: now,
		Lines: []coordinator.OrderLine{
			{ItemID: widget.ID, Quantity: decimal.NewFromInt(3), UnitPrice: widget.UnitPrice},
			{ItemID: gadget.ID, Quantity: decimal.NewFromInt(1), UnitPrice: gadget.UnitPrice, DiscountPercent: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		return summary, fmt.Errorf("sales order: %w", err)
	}
	summary.SalesOrder = so.Number
	if _, err := ledger.ConfirmSalesOrder(ctx, coordinator.ConfirmSalesOrder{Actor: demo.Actor, OrderID: so.ID}); err != nil {
		return summary, fmt.Errorf("confirm %s: %w", so.Number, err)
	}
	shipment := make([]sales.ShipLine, 0, len(so.Lines))
	for _, line := range so.Lines {
		shipment = append(shipment, sales.ShipLine{LineID: line.ID, Qty: line.Quantity})
	}
	if _, err := ledger.ShipSalesOrder(ctx, coordinator.ShipSalesOrder{Actor: demo.Actor, OrderID: so.ID, Lines: shipment}); err != nil {
		return summary, fmt.Errorf("ship %s: %w", so.Number, err)
	}
	if _, err := ledger.RecordCustomerPayment(ctx, coordinator.RecordCustomerPayment{
		Actor: demo.Actor, OrderID: so.ID, Amount: so.Total, Method: "card", PaidAt: now,
	}); err != nil {
		return summary, fmt.Errorf("collect %s: %w", so.Number, err)
	}
	return summary, nil
}
