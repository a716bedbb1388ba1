package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("returns reference", func(t *testing.T) {
		ref, err := callGateway(ctx, time.Second, func(ctx context.Context) (string, error) {
			return "order_1", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "order_1", ref)
	})

	t.Run("propagates error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := callGateway(ctx, time.Second, func(ctx context.Context) (string, error) {
			return "", boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty reference is an error", func(t *testing.T) {
		_, err := callGateway(ctx, time.Second, func(ctx context.Context) (string, error) {
			return "", nil
		})
		assert.Error(t, err)
	})

	t.Run("times out a call that ignores its context", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		start := time.Now()
		_, err := callGateway(ctx, 20*time.Millisecond, func(ctx context.Context) (string, error) {
			<-release
			return "late", nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestSimulatedGateway(t *testing.T) {
	gw := NewSimulatedGateway(0, testLogger())
	ctx := context.Background()

	order, err := gw.OpenOrder(ctx, 50, "receipt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(order, "fake_order_"))
	assert.Len(t, order, len("fake_order_")+12)

	pay, err := gw.ConfirmOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pay, "fake_pay_"))

	_, err = gw.ConfirmOrder(ctx, "")
	assert.Error(t, err)
}

func TestSimulatedGateway_HonoursContext(t *testing.T) {
	gw := NewSimulatedGateway(time.Hour, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gw.OpenOrder(ctx, 50, "receipt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCapturedPaymentID(t *testing.T) {
	body := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"id": "pay_failed", "status": "failed"},
			map[string]interface{}{"id": "pay_ok", "status": "captured"},
		},
	}
	id, err := capturedPaymentID(body)
	require.NoError(t, err)
	assert.Equal(t, "pay_ok", id)

	_, err = capturedPaymentID(map[string]interface{}{"items": []interface{}{}})
	assert.ErrorIs(t, err, ErrOrderNotPaid)

	_, err = capturedPaymentID(map[string]interface{}{})
	assert.ErrorIs(t, err, ErrOrderNotPaid)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5000), toMinorUnits(50))
	assert.Equal(t, int64(1235), toMinorUnits(12.35))
	assert.Equal(t, int64(0), toMinorUnits(0))
}
