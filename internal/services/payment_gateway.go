package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/razorpay/razorpay-go"
	"github.com/sirupsen/logrus"
)

// PaymentGateway is the payment provider boundary
type PaymentGateway interface {
	// OpenOrder registers an order for amount and returns its reference
	OpenOrder(ctx context.Context, amount float64, receipt string) (string, error)

	// ConfirmOrder settles the order and returns the provider's payment reference
	ConfirmOrder(ctx context.Context, orderRef string) (string, error)
}

// ErrOrderNotPaid is returned by a gateway when the order has no captured payment yet
var ErrOrderNotPaid = errors.New("order has no captured payment")

// callGateway runs fn with a deadline. The SDKs behind PaymentGateway are not
// all context aware, so fn keeps running in the background after a timeout;
// its late result is discarded.
func callGateway(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		ref string
		err error
	}
	done := make(chan result, 1)
	go func() {
		ref, err := fn(ctx)
		done <- result{ref: ref, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.ref == "" {
			return "", errors.New("gateway returned an empty reference")
		}
		return r.ref, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("gateway call aborted: %w", ctx.Err())
	}
}

// ============================================================================
// SIMULATED GATEWAY
// ============================================================================

// SimulatedGateway approves every order after an optional artificial latency
type SimulatedGateway struct {
	latency time.Duration
	logger  *logrus.Logger
}

// NewSimulatedGateway creates a simulated payment gateway
func NewSimulatedGateway(latency time.Duration, logger *logrus.Logger) *SimulatedGateway {
	return &SimulatedGateway{latency: latency, logger: logger}
}

// OpenOrder implements PaymentGateway
func (g *SimulatedGateway) OpenOrder(ctx context.Context, amount float64, receipt string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	ref := "fake_order_" + shortHex()
	g.logger.WithFields(logrus.Fields{
		"order_ref": ref,
		"amount":    amount,
		"receipt":   receipt,
	}).Debug("Simulated gateway order opened")
	return ref, nil
}

// ConfirmOrder implements PaymentGateway
func (g *SimulatedGateway) ConfirmOrder(ctx context.Context, orderRef string) (string, error) {
	if orderRef == "" {
		return "", errors.New("order reference is required")
	}
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	ref := "fake_pay_" + shortHex()
	g.logger.WithFields(logrus.Fields{
		"order_ref":   orderRef,
		"payment_ref": ref,
	}).Debug("Simulated gateway order confirmed")
	return ref, nil
}

func (g *SimulatedGateway) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ============================================================================
// RAZORPAY GATEWAY
// ============================================================================

// RazorpayGateway opens orders in Razorpay and confirms them by looking up a
// captured payment of the order. The client completes checkout out of band.
type RazorpayGateway struct {
	client   *razorpay.Client
	currency string
	logger   *logrus.Logger
}

// NewRazorpayGateway creates a Razorpay backed payment gateway
func NewRazorpayGateway(keyID, keySecret, currency string, logger *logrus.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		client:   razorpay.NewClient(keyID, keySecret),
		currency: currency,
		logger:   logger,
	}
}

// OpenOrder implements PaymentGateway
func (g *RazorpayGateway) OpenOrder(ctx context.Context, amount float64, receipt string) (string, error) {
	data := map[string]interface{}{
		"amount":   toMinorUnits(amount),
		"currency": g.currency,
		"receipt":  receipt,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order create failed: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return "", errors.New("razorpay order response has no id")
	}
	g.logger.WithFields(logrus.Fields{
		"order_ref": id,
		"receipt":   receipt,
	}).Info("Razorpay order created")
	return id, nil
}

// ConfirmOrder implements PaymentGateway
func (g *RazorpayGateway) ConfirmOrder(ctx context.Context, orderRef string) (string, error) {
	body, err := g.client.Order.Payments(orderRef, nil, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order payments lookup failed: %w", err)
	}
	return capturedPaymentID(body)
}

// capturedPaymentID picks the first captured payment out of an order payments collection
func capturedPaymentID(body map[string]interface{}) (string, error) {
	items, _ := body["items"].([]interface{})
	for _, item := range items {
		payment, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if status, _ := payment["status"].(string); status != "captured" {
			continue
		}
		if id, _ := payment["id"].(string); id != "" {
			return id, nil
		}
	}
	return "", ErrOrderNotPaid
}

// toMinorUnits converts an amount to the smallest currency unit (paise)
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
