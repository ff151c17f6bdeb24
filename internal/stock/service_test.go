package stock

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCreateMovementDefaultsAndDenormalization(t *testing.T) {
	_, svc, _ := newTestStack()
	ctx := context.Background()

	mov, err := svc.Create(ctx, CreateMovementRequest{
		Type:                  MovementReceipt,
		PartnerName:           "Acme Supply",
		DestinationLocationID: 1,
		Lines: []CreateMovementLineRequest{
			{ProductID: 1, Quantity: qty(10)},
		},
	}, "tester")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, mov.Status)
	require.True(t, strings.HasPrefix(mov.Reference, "RCPT-"), "reference %q", mov.Reference)
	require.Equal(t, "tester", mov.CreatedBy)
	require.Len(t, mov.Lines, 1)
	require.Equal(t, "WIDGET-1", mov.Lines[0].ProductSKU)
	require.Equal(t, "Widget", mov.Lines[0].ProductName)
	require.Equal(t, "Units", mov.Lines[0].UnitOfMeasure)
}

func TestCreateMovementValidation(t *testing.T) {
	_, svc, _ := newTestStack()
	ctx := context.Background()
	oneLine := []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(5)}}

	cases := []struct {
		name string
		req  CreateMovementRequest
	}{
		{"adjustment type rejected", CreateMovementRequest{Type: MovementAdjustment, DestinationLocationID: 1, Lines: oneLine}},
		{"unknown type", CreateMovementRequest{Type: "teleport", DestinationLocationID: 1, Lines: oneLine}},
		{"receipt needs destination", CreateMovementRequest{Type: MovementReceipt, Lines: oneLine}},
		{"delivery needs source", CreateMovementRequest{Type: MovementDelivery, Lines: oneLine}},
		{"internal needs distinct locations", CreateMovementRequest{Type: MovementInternal, SourceLocationID: 1, DestinationLocationID: 1, Lines: oneLine}},
		{"no lines", CreateMovementRequest{Type: MovementReceipt, DestinationLocationID: 1}},
		{"zero quantity", CreateMovementRequest{Type: MovementReceipt, DestinationLocationID: 1, Lines: []CreateMovementLineRequest{{ProductID: 1, Quantity: decimal.Zero}}}},
		{"negative quantity", CreateMovementRequest{Type: MovementReceipt, DestinationLocationID: 1, Lines: []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(-3)}}}},
		{"initial status done", CreateMovementRequest{Type: MovementReceipt, Status: StatusDone, DestinationLocationID: 1, Lines: oneLine}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req, "tester")
			require.Error(t, err)
			require.True(t, IsValidation(err), "want validation error, got %v", err)
		})
	}
}

func TestCreateMovementUnknownReferences(t *testing.T) {
	_, svc, _ := newTestStack()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: 99,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(5)}},
	}, "tester")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Create(ctx, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: 1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 99, Quantity: qty(5)}},
	}, "tester")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMovementLifecycle(t *testing.T) {
	_, svc, _ := newTestStack()
	ctx := context.Background()

	mov, err := svc.Create(ctx, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: 1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(10)}},
	}, "tester")
	require.NoError(t, err)

	notes := "double-checked with supplier"
	waiting := StatusWaiting
	mov, err = svc.Update(ctx, mov.ID, UpdateMovementRequest{Status: &waiting, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, mov.Status)
	require.Equal(t, notes, mov.Notes)

	// Lines may still be replaced while waiting.
	newLines := []CreateMovementLineRequest{{ProductID: 2, Quantity: qty(4)}}
	mov, err = svc.Update(ctx, mov.ID, UpdateMovementRequest{Lines: &newLines})
	require.NoError(t, err)
	require.Len(t, mov.Lines, 1)
	require.Equal(t, "BULK-KG", mov.Lines[0].ProductSKU)

	ready := StatusReady
	mov, err = svc.Update(ctx, mov.ID, UpdateMovementRequest{Status: &ready})
	require.NoError(t, err)
	require.Equal(t, StatusReady, mov.Status)

	// Quantities freeze at ready.
	_, err = svc.Update(ctx, mov.ID, UpdateMovementRequest{Lines: &newLines})
	require.ErrorIs(t, err, ErrInvalidTransition)

	// done is not reachable by patching.
	done := StatusDone
	_, err = svc.Update(ctx, mov.ID, UpdateMovementRequest{Status: &done})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateRejectsTerminalStatuses(t *testing.T) {
	repo, svc, exec := newTestStack()
	ctx := context.Background()

	mov, err := svc.Create(ctx, CreateMovementRequest{
		Type:                  MovementReceipt,
		Status:                StatusReady,
		DestinationLocationID: 1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(10)}},
	}, "tester")
	require.NoError(t, err)
	_, err = exec.Execute(ctx, mov.ID, "tester")
	require.NoError(t, err)

	notes := "too late"
	_, err = svc.Update(ctx, mov.ID, UpdateMovementRequest{Notes: &notes})
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Cancel(ctx, mov.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	canceled, err := svc.Create(ctx, CreateMovementRequest{
		Type:                  MovementReceipt,
		DestinationLocationID: 1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(2)}},
	}, "tester")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, canceled.ID)
	require.NoError(t, err)
	_, err = svc.Update(ctx, canceled.ID, UpdateMovementRequest{Notes: &notes})
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Cancel(ctx, canceled.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Canceling never touched stock.
	require.Empty(t, repo.ledger)
	require.Empty(t, repo.balances)
}

func TestCancelLeavesNoTrace(t *testing.T) {
	repo, svc, _ := newTestStack()
	ctx := context.Background()

	mov, err := svc.Create(ctx, CreateMovementRequest{
		Type:                  MovementDelivery,
		Status:                StatusReady,
		SourceLocationID:      1,
		Lines:                 []CreateMovementLineRequest{{ProductID: 1, Quantity: qty(5)}},
	}, "tester")
	require.NoError(t, err)

	mov, err = svc.Cancel(ctx, mov.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, mov.Status)
	require.Empty(t, repo.ledger)
	require.Empty(t, repo.balances)
}

func TestListAndLedgerFilterValidation(t *testing.T) {
	_, svc, _ := newTestStack()
	ctx := context.Background()

	_, err := svc.List(ctx, MovementFilter{Type: "bogus"})
	require.True(t, IsValidation(err))
	_, err = svc.List(ctx, MovementFilter{Status: "bogus"})
	require.True(t, IsValidation(err))
	_, err = svc.QueryLedger(ctx, LedgerFilter{MovementType: "bogus"})
	require.True(t, IsValidation(err))

	movs, err := svc.List(ctx, MovementFilter{})
	require.NoError(t, err)
	require.Empty(t, movs)
}

func TestGenerateReferencePrefixes(t *testing.T) {
	for typ, prefix := range map[MovementType]string{
		MovementReceipt:  "RCPT-",
		MovementDelivery: "DLV-",
		MovementInternal: "TRF-",
	} {
		ref := generateReference(typ)
		require.True(t, strings.HasPrefix(ref, prefix), "type %s got %q", typ, ref)
	}
}
