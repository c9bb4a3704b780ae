package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"time"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/security"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

var demoWarehouses = []struct {
	name string
	typ  warehouse.Type
}{
	{"Main warehouse", warehouse.TypeBoth},
	{"Raw materials store", warehouse.TypeRaw},
	{"Finished goods store", warehouse.TypeFinished},
}

var demoItems = []struct {
	name     string
	unit     unit.Code
	category string
}{
	{"Steel bolt M8", unit.CodePiece, "fasteners"},
	{"Hex nut M8", unit.CodePiece, "fasteners"},
	{"Copper wire 2mm", unit.CodeBox, "electrical"},
	{"Ballpoint pen", unit.CodeZhi, "stationery"},
	{"Packing tape", unit.CodeGe, "packaging"},
}

var demoPartners = []string{"Acme Supplies", "Northwind Retail"}

type demoCatalog struct {
	items      []*item.Item
	warehouses []*warehouse.Warehouse
	partners   []*partner.Partner
}

func runSeed(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	moves := fs.Int("moves", 40, "number of stock moves to create")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *moves < 0 {
		return errors.New("-moves must not be negative")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn(ctx, "seeding the in-memory store; the data is gone when ledgerctl exits")
	}

	demo, err := ensureCatalogs(ctx, a)
	if err != nil {
		return fmt.Errorf("seed catalogs: %w", err)
	}

	created, err := seedMoves(ctx, a, demo, *moves)
	if err != nil {
		return fmt.Errorf("seed moves: %w", err)
	}

	logger.Info(ctx, "seeding completed",
		"items", len(demo.items),
		"warehouses", len(demo.warehouses),
		"partners", len(demo.partners),
		"moves", created,
	)
	return nil
}

// ensureCatalogs loads the demo rows, creating the missing ones. On postgres
// new rows are bulk-loaded with COPY; otherwise they go through the services.
func ensureCatalogs(ctx context.Context, a *app.App) (*demoCatalog, error) {
	demo := &demoCatalog{}
	var newWarehouses []*warehouse.Warehouse
	var newItems []*item.Item
	var newPartners []*partner.Partner

	for _, d := range demoWarehouses {
		wh, err := a.Warehouses.GetByName(ctx, d.name)
		switch {
		case err == nil:
		case apperror.IsNotFound(err):
			wh = warehouse.NewWarehouse(d.name, d.typ)
			newWarehouses = append(newWarehouses, wh)
		default:
			return nil, err
		}
		demo.warehouses = append(demo.warehouses, wh)
	}

	for _, name := range demoPartners {
		p, err := a.Partners.GetByName(ctx, name)
		switch {
		case err == nil:
		case apperror.IsNotFound(err):
			p = partner.NewPartner(name)
			newPartners = append(newPartners, p)
		default:
			return nil, err
		}
		demo.partners = append(demo.partners, p)
	}

	for _, d := range demoItems {
		it, err := a.Items.GetByName(ctx, d.name)
		switch {
		case err == nil:
		case apperror.IsNotFound(err):
			u, err := a.Units.GetByCode(ctx, d.unit)
			if err != nil {
				return nil, fmt.Errorf("unit %s: %w", d.unit, err)
			}
			it = item.NewItem(d.name, u.ID)
			category := d.category
			it.Category = &category
			newItems = append(newItems, it)
		default:
			return nil, err
		}
		demo.items = append(demo.items, it)
	}

	if inserter := a.Storage.BatchInserter(); inserter != nil {
		err := a.Storage.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
			return copyCatalogs(ctx, inserter, newWarehouses, newPartners, newItems)
		})
		return demo, err
	}

	for _, wh := range newWarehouses {
		if err := a.Warehouses.Create(ctx, wh); err != nil {
			return nil, err
		}
	}
	for _, p := range newPartners {
		if err := a.Partners.Create(ctx, p); err != nil {
			return nil, err
		}
	}
	for _, it := range newItems {
		if err := a.Items.Create(ctx, it); err != nil {
			return nil, err
		}
	}
	return demo, nil
}

func copyCatalogs(ctx context.Context, b *postgres.BatchInserter, whs []*warehouse.Warehouse, ps []*partner.Partner, its []*item.Item) error {
	for _, wh := range whs {
		if err := wh.Validate(ctx); err != nil {
			return err
		}
	}
	for _, p := range ps {
		if err := p.Validate(ctx); err != nil {
			return err
		}
	}
	for _, it := range its {
		if err := it.Validate(ctx); err != nil {
			return err
		}
	}

	// Items reference warehouses, so warehouses are loaded first.
	if len(whs) > 0 {
		n, err := postgres.CopyStructs(ctx, b, "warehouses", whs)
		if err != nil {
			return fmt.Errorf("copy warehouses: %w", err)
		}
		logger.Info(ctx, "warehouses loaded", "count", n)
	}
	if len(ps) > 0 {
		n, err := postgres.CopyStructs(ctx, b, "partners", ps)
		if err != nil {
			return fmt.Errorf("copy partners: %w", err)
		}
		logger.Info(ctx, "partners loaded", "count", n)
	}
	if len(its) > 0 {
		n, err := postgres.CopyStructs(ctx, b, "items", its)
		if err != nil {
			return fmt.Errorf("copy items: %w", err)
		}
		logger.Info(ctx, "items loaded", "count", n)
	}
	return nil
}

// seedMoves writes n moves through the normal write path: the first half
// INBOUND, the rest OUTBOUND from pairs that have stock.
func seedMoves(ctx context.Context, a *app.App, demo *demoCatalog, n int) (int, error) {
	if n == 0 {
		return 0, nil
	}
	ts := time.Now().Unix()
	scope := security.AllWarehouses()
	inbound := (n + 1) / 2

	created := 0
	touched := make(map[entity.BalanceKey]struct{})
	for i := 1; i <= inbound; i++ {
		it := demo.items[rand.IntN(len(demo.items))]
		wh := demo.warehouses[rand.IntN(len(demo.warehouses))]
		partnerID := demo.partners[rand.IntN(len(demo.partners))].ID

		_, err := a.Stock.CreateMove(ctx, scope, stock.MoveRequest{
			Type:        entity.MoveInbound,
			ItemID:      it.ID,
			WarehouseID: wh.ID,
			Quantity:    int64(5 + rand.IntN(26)),
			Reference:   fmt.Sprintf("SEED-IN-%d-%d", ts, i),
			Note:        "seed",
			PartnerID:   &partnerID,
		})
		if err != nil {
			return created, err
		}
		created++
		touched[entity.BalanceKey{ItemID: it.ID, WarehouseID: wh.ID}] = struct{}{}
	}

	type stocked struct {
		key    entity.BalanceKey
		onHand int64
	}
	var pairs []stocked
	for key := range touched {
		onHand, err := a.Query.GetBalance(ctx, scope, key)
		if err != nil {
			return created, err
		}
		if onHand > 0 {
			pairs = append(pairs, stocked{key: key, onHand: onHand})
		}
	}

	for i := 1; i <= n-inbound && len(pairs) > 0; i++ {
		k := rand.IntN(len(pairs))
		p := &pairs[k]
		qty := 1 + rand.Int64N(min(p.onHand, 30))

		_, err := a.Stock.CreateMove(ctx, scope, stock.MoveRequest{
			Type:        entity.MoveOutbound,
			ItemID:      p.key.ItemID,
			WarehouseID: p.key.WarehouseID,
			Quantity:    qty,
			Reference:   fmt.Sprintf("SEED-OUT-%d-%d", ts, i),
			Note:        "seed",
		})
		if err != nil {
			return created, err
		}
		created++

		p.onHand -= qty
		if p.onHand == 0 {
			pairs = append(pairs[:k], pairs[k+1:]...)
		}
	}
	return created, nil
}
