package stock

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func createReady(t *testing.T, svc *Service, req CreateMovementRequest) Movement {
	t.Helper()
	req.Status = StatusReady
	mov, err := svc.Create(context.Background(), req, "tester")
	require.NoError(t, err)
	return mov
}

func seedStock(t *testing.T, exec *Executor, productID, locationID int64, quantity int64) {
	t.Helper()
	mov := createReady(t, &Service{repo: exec.repo, products: exec.products, locations: exec.locations}, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: locationID,
		Lines:                 []CreateMovementLineRequest{{ProductID: productID, Quantity: qty(quantity)}},
	})
	_, err := exec.Execute(context.Background(), mov.ID, "tester")
	require.NoError(t, err)
}

func TestExecuteReceipt(t *testing.T) {
	repo, svc, exec := newTestStack()
	ctx := context.Background()

	mov := createReady(t, svc, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: 1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(25)}},
	})

	executed, err := exec.Execute(ctx, mov.ID, "tester")
	require.NoError(t, err)
	require.Equal(t, StatusDone, executed.Status)
	require.NotNil(t, executed.ExecutedAt)

	bal, err := repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, bal.Equal(qty(25)), "balance %s", bal)

	require.Len(t, repo.ledger, 1)
	entry := repo.ledger[0]
	require.Equal(t, mov.ID, entry.MovementID)
	require.Equal(t, mov.Reference, entry.Reference)
	require.True(t, entry.QuantityChange.Equal(qty(25)))
	require.True(t, entry.BalanceAfter.Equal(qty(25)))
}

func TestExecuteTwiceFailsSecondTime(t *testing.T) {
	repo, svc, exec := newTestStack()
	ctx := context.Background()

	mov := createReady(t, svc, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: 1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(10)}},
	})

	_, err := exec.Execute(ctx, mov.ID, "tester")
	require.NoError(t, err)
	_, err = exec.Execute(ctx, mov.ID, "tester")
	require.ErrorIs(t, err, ErrAlreadyExecuted)

	// Applied exactly once.
	bal, err := repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, bal.Equal(qty(10)), "balance %s", bal)
	require.Len(t, repo.ledger, 1)
}

func TestExecuteRequiresReady(t *testing.T) {
	_, svc, exec := newTestStack()
	ctx := context.Background()

	mov, err := svc.Create(ctx, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: 1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(10)}},
	}, "tester")
	require.NoError(t, err)

	_, err = exec.Execute(ctx, mov.ID, "tester")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = exec.Execute(ctx, 404, "tester")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteDeliveryInsufficientStockRollsBack(t *testing.T) {
	repo, svc, exec := newTestStack()
	ctx := context.Background()
	seedStock(t, exec, 1, 1, 5)

	mov := createReady(t, svc, CreateMovementRequest{
		Type:             MovementDelivery,
		SourceLocationID: 1,
		Lines:            []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(8)}},
	})

	_, err := exec.Execute(ctx, mov.ID, "tester")
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Requested.Equal(qty(8)))
	require.True(t, insufficient.Available.Equal(qty(5)))

	// Nothing moved: balance, ledger and the movement status are untouched.
	bal, err := repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, bal.Equal(qty(5)), "balance %s", bal)
	require.Len(t, repo.ledger, 1) // only the seed receipt
	reloaded, err := repo.GetMovement(ctx, mov.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReady, reloaded.Status)

	// Retrying after restock succeeds.
	seedStock(t, exec, 1, 1, 10)
	_, err = exec.Execute(ctx, mov.ID, "tester")
	require.NoError(t, err)
	bal, err = repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, bal.Equal(qty(7)), "balance %s", bal)
}

func TestExecuteInternalTransferConservesStock(t *testing.T) {
	repo, svc, exec := newTestStack()
	ctx := context.Background()
	seedStock(t, exec, 1, 1, 20)

	mov := createReady(t, svc, CreateMovementRequest{
		Type:                  MovementInternal,
		SourceLocationID:      1,
		DestinationLocationID: 3,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(6)}},
	})

	_, err := exec.Execute(ctx, mov.ID, "tester")
	require.NoError(t, err)

	src, err := repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	dst, err := repo.GetBalance(ctx, 1, 3)
	require.NoError(t, err)
	require.True(t, src.Equal(qty(14)), "source %s", src)
	require.True(t, dst.Equal(qty(6)), "destination %s", dst)

	// Two opposite entries sharing the reference and timestamp.
	entries, err := repo.QueryLedger(ctx, LedgerFilter{MovementType: MovementInternal})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	out, in := entries[0], entries[1]
	require.True(t, out.QuantityChange.Equal(qty(-6)))
	require.True(t, in.QuantityChange.Equal(qty(6)))
	require.Equal(t, mov.Reference, out.Reference)
	require.Equal(t, mov.Reference, in.Reference)
	require.True(t, out.OccurredAt.Equal(in.OccurredAt))
	require.True(t, out.QuantityChange.Add(in.QuantityChange).IsZero())
}

func TestExecuteInternalTransferInsufficientLeavesBothSides(t *testing.T) {
	repo, svc, exec := newTestStack()
	ctx := context.Background()
	seedStock(t, exec, 1, 1, 3)

	mov := createReady(t, svc, CreateMovementRequest{
		Type:                  MovementInternal,
		SourceLocationID:      1,
		DestinationLocationID: 3,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(9)}},
	})

	_, err := exec.Execute(ctx, mov.ID, "tester")
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	src, err := repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	dst, err := repo.GetBalance(ctx, 1, 3)
	require.NoError(t, err)
	require.True(t, src.Equal(qty(3)), "source %s", src)
	require.True(t, dst.IsZero(), "destination %s", dst)
}

func TestCreateAdjustmentAppliesDelta(t *testing.T) {
	repo, _, exec := newTestStack()
	ctx := context.Background()
	seedStock(t, exec, 1, 1, 42)

	result, err := exec.CreateAdjustment(ctx, AdjustmentRequest{
		ProductID:       1,
		LocationID:      1,
		CountedQuantity: qty(50),
	}, "tester", "")
	require.NoError(t, err)
	require.True(t, result.PreviousQuantity.Equal(qty(42)))
	require.True(t, result.Delta.Equal(qty(8)))
	require.NotZero(t, result.MovementID)
	require.NotEmpty(t, result.Reference)

	bal, err := repo.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, bal.Equal(qty(50)), "balance %s", bal)

	mov, err := repo.GetMovement(ctx, result.MovementID)
	require.NoError(t, err)
	require.Equal(t, MovementAdjustment, mov.Type)
	require.Equal(t, StatusDone, mov.Status)
	require.Len(t, mov.Lines, 1)
	require.True(t, mov.Lines[0].Quantity.Equal(qty(8)))

	entries, err := repo.QueryLedger(ctx, LedgerFilter{MovementType: MovementAdjustment})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].QuantityChange.Equal(qty(8)))
	require.True(t, entries[0].BalanceAfter.Equal(qty(50)))
}

func TestCreateAdjustmentZeroDeltaIsNoOp(t *testing.T) {
	repo, _, exec := newTestStack()
	ctx := context.Background()
	seedStock(t, exec, 1, 1, 42)
	movementsBefore := len(repo.movements)
	ledgerBefore := len(repo.ledger)

	result, err := exec.CreateAdjustment(ctx, AdjustmentRequest{
		ProductID:       1,
		LocationID:      1,
		CountedQuantity: qty(42),
	}, "tester", "")
	require.NoError(t, err)
	require.True(t, result.Delta.IsZero())
	require.Zero(t, result.MovementID)
	require.Empty(t, result.Reference)
	require.Len(t, repo.movements, movementsBefore)
	require.Len(t, repo.ledger, ledgerBefore)
}

func TestCreateAdjustmentShrink(t *testing.T) {
	repo, _, exec := newTestStack()
	ctx := context.Background()
	seedStock(t, exec, 2, 1, 100)

	result, err := exec.CreateAdjustment(ctx, AdjustmentRequest{
		ProductID:       2,
		CountedQuantity: qty(73),
	}, "tester", "")
	require.NoError(t, err)
	// Location omitted falls back to the default storage location.
	require.Equal(t, int64(1), result.LocationID)
	require.True(t, result.Delta.Equal(qty(-27)))

	bal, err := repo.GetBalance(ctx, 2, 1)
	require.NoError(t, err)
	require.True(t, bal.Equal(qty(73)), "balance %s", bal)
}

func TestCreateAdjustmentValidation(t *testing.T) {
	_, _, exec := newTestStack()
	ctx := context.Background()

	_, err := exec.CreateAdjustment(ctx, AdjustmentRequest{ProductID: 1, CountedQuantity: qty(-1)}, "tester", "")
	require.True(t, IsValidation(err), "got %v", err)

	_, err = exec.CreateAdjustment(ctx, AdjustmentRequest{ProductID: 99, CountedQuantity: qty(5)}, "tester", "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = exec.CreateAdjustment(ctx, AdjustmentRequest{ProductID: 1, LocationID: 99, CountedQuantity: qty(5)}, "tester", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerReplayMatchesBalances(t *testing.T) {
	repo, svc, exec := newTestStack()
	ctx := context.Background()

	seedStock(t, exec, 1, 1, 30)
	seedStock(t, exec, 2, 1, 12)

	transfer := createReady(t, svc, CreateMovementRequest{
		Type:                  MovementInternal,
		SourceLocationID:      1,
		DestinationLocationID: 3,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(10)}},
	})
	_, err := exec.Execute(ctx, transfer.ID, "tester")
	require.NoError(t, err)

	delivery := createReady(t, svc, CreateMovementRequest{
		Type:             MovementDelivery,
		SourceLocationID: 1,
		Lines:            []CreateMovementLineRequest{{ProductID: 2, Quantity: qty(7)}},
	})
	_, err = exec.Execute(ctx, delivery.ID, "tester")
	require.NoError(t, err)

	_, err = exec.CreateAdjustment(ctx, AdjustmentRequest{ProductID: 1, LocationID: 3, CountedQuantity: qty(4)}, "tester", "")
	require.NoError(t, err)

	// Replaying every signed change reproduces each stored balance.
	sums := make(map[string]decimal.Decimal)
	for _, e := range repo.ledger {
		key := balanceKey(e.ProductID, e.LocationID)
		sums[key] = sums[key].Add(e.QuantityChange)
	}
	require.Len(t, sums, len(repo.balances))
	for key, bal := range repo.balances {
		require.True(t, bal.Quantity.Equal(sums[key]), "%s stored %s replayed %s", key, bal.Quantity, sums[key])
	}
}

type recordingMetrics struct {
	observed [][2]string
}

func (m *recordingMetrics) ObserveExecution(movementType, outcome string) {
	m.observed = append(m.observed, [2]string{movementType, outcome})
}

func TestExecuteObservesOutcomesPerMovementType(t *testing.T) {
	ctx := context.Background()
	repo, svc, exec := newTestStack()
	rec := &recordingMetrics{}
	observed := NewExecutor(repo, exec.products, exec.locations, nil, nil, rec, ExecutorConfig{DefaultLocationID: 1})

	receipt := createReady(t, svc, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: 1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(5)}},
	})
	_, err := observed.Execute(ctx, receipt.ID, "tester")
	require.NoError(t, err)

	delivery := createReady(t, svc, CreateMovementRequest{
		Type:             MovementDelivery,
		SourceLocationID: 2,
		Lines:            []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(50)}},
	})
	_, err = observed.Execute(ctx, delivery.ID, "tester")
	require.Error(t, err)

	_, err = observed.Execute(ctx, 404404, "tester")
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, [][2]string{
		{"receipt", "success"},
		{"delivery", "insufficient_stock"},
		{"unknown", "error"},
	}, rec.observed)
}
