package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

func TestRepositoryRejectsBackwardTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, enums.PaymentMethodCash, enums.OrderStatusDelivered)
	_, err := env.svc.ConfirmCash(ctx, env.farmerActor(), order.ID)
	require.NoError(t, err)
	paid := env.payment(t, order.ID)
	repo := NewRepository(env.db)

	_, err = repo.Transition(ctx, paid.ID, []enums.PaymentStatus{enums.PaymentStatusPaid}, enums.PaymentStatusPending, nil)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = repo.Transition(ctx, paid.ID, []enums.PaymentStatus{enums.PaymentStatusRejected}, enums.PaymentStatusPaid, nil)
	require.ErrorIs(t, err, ErrIllegalTransition)

	moved, err := repo.Transition(ctx, paid.ID, []enums.PaymentStatus{enums.PaymentStatusPaid, enums.PaymentStatusPending}, enums.PaymentStatusFailed, nil)
	require.NoError(t, err)
	require.False(t, moved)

	_, err = repo.UpdateWhile(ctx, paid.ID, []enums.PaymentStatus{enums.PaymentStatusPaid}, map[string]any{"status": enums.PaymentStatusRejected})
	require.ErrorIs(t, err, ErrStatusNotUpdatable)

	require.Equal(t, enums.PaymentStatusPaid, env.payment(t, order.ID).Status)
}

func TestRepositoryTransitionFollowsGraph(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, enums.PaymentMethodCash, enums.OrderStatusProcessing)
	pending := env.payment(t, order.ID)
	repo := NewRepository(env.db)

	moved, err := repo.Transition(ctx, pending.ID, nil, enums.PaymentStatusAwaitingConfirmation, map[string]any{"status": enums.PaymentStatusPaid})
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, enums.PaymentStatusAwaitingConfirmation, env.payment(t, order.ID).Status)
}
