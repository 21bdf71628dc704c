package orders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		transition Transition
		from       enums.OrderStatus
		allowed    bool
	}{
		{TransitionPay, enums.OrderStatusPendingPayment, true},
		{TransitionPay, enums.OrderStatusPaid, false},
		{TransitionCancel, enums.OrderStatusPendingPayment, true},
		{TransitionCancel, enums.OrderStatusPaid, false},
		{TransitionCancel, enums.OrderStatusCancelled, false},
		{TransitionAssignDriver, enums.OrderStatusPaid, true},
		{TransitionAssignDriver, enums.OrderStatusAwaitingDriverAccept, true},
		{TransitionAssignDriver, enums.OrderStatusDriverAssigned, false},
		{TransitionDriverAccept, enums.OrderStatusAwaitingDriverAccept, true},
		{TransitionDriverAccept, enums.OrderStatusPaid, false},
		{TransitionDriverDecline, enums.OrderStatusDriverAssigned, false},
		{TransitionVerifyOTP, enums.OrderStatusDriverAssigned, true},
		{TransitionVerifyOTP, enums.OrderStatusDelivered, false},
		{TransitionSettle, enums.OrderStatusDelivered, true},
		{TransitionSettle, enums.OrderStatusOTPVerified, true},
		{TransitionSettle, enums.OrderStatusCompleted, false},
		{Transition("ship"), enums.OrderStatusPaid, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, CanApply(tc.transition, tc.from), "%s from %s", tc.transition, tc.from)
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for transition := range edges {
		require.False(t, CanApply(transition, enums.OrderStatusCompleted), transition)
		require.False(t, CanApply(transition, enums.OrderStatusCancelled), transition)
	}
}

func TestGuardMessages(t *testing.T) {
	err := guard(TransitionCancel, enums.OrderStatusPaid)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	require.Contains(t, err.Error(), "cannot cancel a paid or processed order")

	err = guard(TransitionSettle, enums.OrderStatusCompleted)
	require.Contains(t, err.Error(), "order already settled")

	require.NoError(t, guard(TransitionPay, enums.OrderStatusPendingPayment))
}

func TestScopes(t *testing.T) {
	scope, err := ParseScope("")
	require.NoError(t, err)
	require.Nil(t, scope.Statuses())

	scope, err = ParseScope("finished")
	require.NoError(t, err)
	require.ElementsMatch(t, []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled}, scope.Statuses())

	_, err = ParseScope("shipped")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	require.True(t, HasReceipt(enums.OrderStatusCompleted))
	require.False(t, HasReceipt(enums.OrderStatusCancelled))
	require.False(t, HasReceipt(enums.OrderStatusPendingPayment))
	require.Contains(t, DriverDeliveryStatuses(), enums.OrderStatusCompleted)
}
