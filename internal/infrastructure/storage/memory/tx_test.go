package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/registers/stock"
)

func TestTxManager_RollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	txm := NewTxManager(s)
	repo := NewWarehouseRepo(s)
	ctx := context.Background()

	wh := warehouse.NewWarehouse("Main", warehouse.TypeRaw)
	boom := errors.New("boom")
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, wh))

		got, err := repo.GetByID(ctx, wh.ID)
		require.NoError(t, err)
		assert.Equal(t, "Main", got.Name)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, wh.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestTxManager_UncommittedInvisibleToOthers(t *testing.T) {
	s := NewStore()
	txm := NewTxManager(s)
	repo := NewWarehouseRepo(s)
	ctx := context.Background()

	wh := warehouse.NewWarehouse("Main", warehouse.TypeRaw)
	err := txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.Create(txCtx, wh))
		ok, err := repo.Exists(ctx, wh.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	ok, err := repo.Exists(ctx, wh.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTxManager_ReadOnlyRejectsWrites(t *testing.T) {
	s := NewStore()
	txm := NewTxManager(s)
	repo := NewWarehouseRepo(s)

	err := txm.ReadOnly(context.Background(), func(ctx context.Context) error {
		return repo.Create(ctx, warehouse.NewWarehouse("Main", warehouse.TypeRaw))
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestCatalogRepo_OptimisticVersion(t *testing.T) {
	s := NewStore()
	repo := NewWarehouseRepo(s)
	ctx := context.Background()

	wh := warehouse.NewWarehouse("Main", warehouse.TypeRaw)
	require.NoError(t, repo.Create(ctx, wh))
	assert.Equal(t, 1, wh.Version)

	stale, err := repo.GetByID(ctx, wh.ID)
	require.NoError(t, err)

	wh.Name = "Central"
	require.NoError(t, repo.Update(ctx, wh))
	assert.Equal(t, 2, wh.Version)

	stale.Name = "Other"
	err = repo.Update(ctx, stale)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestCatalogRepo_UniqueName(t *testing.T) {
	s := NewStore()
	repo := NewWarehouseRepo(s)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, warehouse.NewWarehouse("Main", warehouse.TypeRaw)))
	err := repo.Create(ctx, warehouse.NewWarehouse("main", warehouse.TypeRaw))
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestCatalogRepo_List(t *testing.T) {
	s := NewStore()
	repo := NewWarehouseRepo(s)
	ctx := context.Background()

	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		require.NoError(t, repo.Create(ctx, warehouse.NewWarehouse(name, warehouse.TypeBoth)))
	}
	closed := warehouse.NewWarehouse("Delta", warehouse.TypeBoth)
	closed.IsActive = false
	require.NoError(t, repo.Create(ctx, closed))

	res, err := repo.List(ctx, domain.ListFilter{ActiveOnly: true, OrderBy: "name", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Alpha", res.Items[0].Name)
	assert.Equal(t, "Bravo", res.Items[1].Name)

	res, err = repo.List(ctx, domain.ListFilter{Search: "ta", OrderBy: "-name"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Delta", res.Items[0].Name)
}

func TestStore_LockTimeout(t *testing.T) {
	s := NewStore(WithLockTimeout(20 * time.Millisecond))
	txm := NewTxManager(s)
	balances := NewBalanceRepo(s)
	key := entity.BalanceKey{ItemID: id.New(), WarehouseID: id.New()}
	ctx := context.Background()

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, balances.EnsureRow(ctx, key))
		_, err := balances.LockForUpdate(ctx, key)
		require.NoError(t, err)

		// re-entrant within the same transaction
		_, err = balances.LockForUpdate(ctx, key)
		require.NoError(t, err)

		other := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
			require.NoError(t, balances.EnsureRow(ctx, key))
			_, err := balances.LockForUpdate(ctx, key)
			return err
		})
		assert.True(t, apperror.HasCode(other, apperror.CodeLockTimeout))
		return nil
	})
	require.NoError(t, err)

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := balances.LockForUpdate(ctx, key)
		return err
	})
	assert.NoError(t, err, "lock must be released after commit")
}

func TestMoveRepo_AppendRequiresTx(t *testing.T) {
	s := NewStore()
	moves := NewMoveRepo(s)
	err := moves.Append(context.Background(), &entity.StockMove{MoveType: entity.MoveInbound, Quantity: 1})
	assert.ErrorIs(t, err, errNoTx)
}

func TestMoveRepo_ReversalUniqueAtCommit(t *testing.T) {
	s := NewStore()
	txm := NewTxManager(s)
	moves := NewMoveRepo(s)
	ctx := context.Background()
	itemID, whID := id.New(), id.New()

	var origID int64
	require.NoError(t, txm.RunInTransaction(ctx, func(ctx context.Context) error {
		m := &entity.StockMove{MoveType: entity.MoveInbound, ItemID: itemID, WarehouseID: whID, Quantity: 3}
		err := moves.Append(ctx, m)
		origID = m.ID
		return err
	}))

	reverse := func() error {
		return txm.RunInTransaction(ctx, func(ctx context.Context) error {
			return moves.Append(ctx, &entity.StockMove{
				MoveType: entity.MoveAdjust, ItemID: itemID, WarehouseID: whID, Quantity: -3, ReversesMoveID: &origID,
			})
		})
	}
	require.NoError(t, reverse())
	assert.True(t, apperror.HasCode(reverse(), apperror.CodeConflict))
	assert.Equal(t, 2, s.MoveCount())

	found, err := moves.FindReversal(ctx, origID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(-3), found.Quantity)
}

func TestTxManager_ReadOnlySeesMoveSnapshot(t *testing.T) {
	s := NewStore()
	txm := NewTxManager(s)
	moves := NewMoveRepo(s)
	ctx := context.Background()
	itemID, whID := id.New(), id.New()

	appendMove := func() int64 {
		var moveID int64
		require.NoError(t, txm.RunInTransaction(ctx, func(ctx context.Context) error {
			m := &entity.StockMove{MoveType: entity.MoveInbound, ItemID: itemID, WarehouseID: whID, Quantity: 1}
			err := moves.Append(ctx, m)
			moveID = m.ID
			return err
		}))
		return moveID
	}
	appendMove()

	filter := stock.MoveFilter{Scope: security.AllWarehouses()}
	var late int64
	err := txm.ReadOnly(ctx, func(roCtx context.Context) error {
		before, err := moves.Count(roCtx, filter)
		require.NoError(t, err)

		late = appendMove()

		after, err := moves.Count(roCtx, filter)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		list, err := moves.List(roCtx, filter)
		require.NoError(t, err)
		assert.Len(t, list, int(before))

		sum, err := moves.Sum(roCtx, entity.BalanceKey{ItemID: itemID, WarehouseID: whID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), sum.Total)

		_, err = moves.GetByID(roCtx, late)
		assert.True(t, apperror.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)

	n, err := moves.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMoveRepo_SumOverflow(t *testing.T) {
	s := NewStore()
	txm := NewTxManager(s)
	moves := NewMoveRepo(s)
	ctx := context.Background()
	key := entity.BalanceKey{ItemID: id.New(), WarehouseID: id.New()}

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, q := range []int64{1 << 62, 1 << 62} {
			m := &entity.StockMove{MoveType: entity.MoveInbound, ItemID: key.ItemID, WarehouseID: key.WarehouseID, Quantity: q}
			require.NoError(t, moves.Append(ctx, m))
		}
		_, err := moves.Sum(ctx, key)
		return err
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Zero(t, s.MoveCount())
}
