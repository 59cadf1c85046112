// Package ledger reads and writes device records on the EVM device registry
// contract. The Adapter turns raw contract results into domain values and
// classifies every failure as a LedgerError or IdentifierResolutionError.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"ewaste-tracker/backend/internal/device/domain"
)

// DefaultCountTimeout bounds TotalDevices. A slower answer is reported as zero.
const DefaultCountTimeout = 15 * time.Second

const instrumentationName = "ewaste-tracker/backend/internal/ledger"

// RawDevice is a device record as returned by the contract, before normalization.
type RawDevice struct {
	ID           *big.Int
	DeviceType   string
	Status       string
	RegisteredBy common.Address
	RegisteredAt *big.Int
	LastUpdated  *big.Int
}

// Backend performs the raw contract interactions. Submit methods block until
// the transaction is mined and return its receipt.
type Backend interface {
	SubmitRegistration(ctx context.Context, deviceType string) (*types.Receipt, error)
	SubmitStatusUpdate(ctx context.Context, deviceID *big.Int, status string) (*types.Receipt, error)
	GetDevice(ctx context.Context, deviceID *big.Int) (RawDevice, error)
	TotalDevices(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context) (*big.Int, error)
	ContractAddress() common.Address
}

// Registration is the result of a confirmed device registration.
type Registration struct {
	ID              uint64
	ConfirmationRef string
}

// Adapter is the domain-facing ledger client.
type Adapter struct {
	backend      Backend
	countTimeout time.Duration
	tracer       trace.Tracer
	callDuration metric.Float64Histogram
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCountTimeout overrides DefaultCountTimeout. Non-positive values are ignored.
func WithCountTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.countTimeout = d
		}
	}
}

// NewAdapter returns an Adapter over backend. Spans and metrics go to the
// global OpenTelemetry providers.
func NewAdapter(backend Backend, opts ...Option) *Adapter {
	a := &Adapter{
		backend:      backend,
		countTimeout: DefaultCountTimeout,
		tracer:       otel.Tracer(instrumentationName),
	}
	hist, err := otel.Meter(instrumentationName).Float64Histogram(
		"ledger.call.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of ledger contract calls."),
	)
	if err != nil {
		slog.Warn("ledger: create call duration histogram", "error", err)
		hist = noop.Float64Histogram{}
	}
	a.callDuration = hist
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterDevice submits a registration, waits for confirmation and resolves
// the new device id from the receipt. When the receipt carries no
// registration event the contract's device counter is used instead.
func (a *Adapter) RegisterDevice(ctx context.Context, deviceType domain.DeviceType) (reg Registration, err error) {
	ctx, end := a.observe(ctx, "register_device")
	defer func() { end(err) }()

	receipt, err := a.backend.SubmitRegistration(ctx, string(deviceType))
	if err != nil {
		return Registration{}, &LedgerError{Op: "register device", Err: err}
	}
	if err := checkReceipt(receipt); err != nil {
		return Registration{}, &LedgerError{Op: "register device", Err: err}
	}
	ref := receipt.TxHash.Hex()

	switch m := ParseRegistration(receipt.Logs, a.backend.ContractAddress(), DeviceRegisteredTopic).(type) {
	case ParsedEvent:
		return Registration{ID: m.DeviceID, ConfirmationRef: ref}, nil
	case NoMatch:
		slog.Warn("ledger: registration event not found, falling back to device counter",
			"confirmation_ref", ref, "reason", m.Reason)
	}

	total, err := a.backend.TotalDevices(ctx)
	if err != nil {
		return Registration{}, &IdentifierResolutionError{
			ConfirmationRef: ref,
			Cause:           &LedgerError{Op: "total devices", Err: err},
		}
	}
	id, err := toUint64(total)
	if err != nil {
		return Registration{}, &IdentifierResolutionError{ConfirmationRef: ref, Cause: err}
	}
	if id == 0 {
		return Registration{}, &IdentifierResolutionError{
			ConfirmationRef: ref,
			Cause:           errors.New("device counter is zero after confirmed registration"),
		}
	}
	return Registration{ID: id, ConfirmationRef: ref}, nil
}

// UpdateStatus records a status transition and returns its confirmation ref.
func (a *Adapter) UpdateStatus(ctx context.Context, deviceID uint64, status domain.Status) (ref string, err error) {
	ctx, end := a.observe(ctx, "update_status")
	defer func() { end(err) }()

	receipt, err := a.backend.SubmitStatusUpdate(ctx, new(big.Int).SetUint64(deviceID), string(status))
	if err != nil {
		return "", &LedgerError{Op: "update status", Err: err}
	}
	if err := checkReceipt(receipt); err != nil {
		return "", &LedgerError{Op: "update status", Err: err}
	}
	return receipt.TxHash.Hex(), nil
}

// GetDevice returns the ledger's record for deviceID.
func (a *Adapter) GetDevice(ctx context.Context, deviceID uint64) (rec *domain.DeviceRecord, err error) {
	ctx, end := a.observe(ctx, "get_device")
	defer func() { end(err) }()

	raw, err := a.backend.GetDevice(ctx, new(big.Int).SetUint64(deviceID))
	if err != nil {
		return nil, &LedgerError{Op: fmt.Sprintf("get device %d", deviceID), Err: err}
	}
	rec, err = normalizeDevice(raw)
	if err != nil {
		return nil, &LedgerError{Op: fmt.Sprintf("get device %d", deviceID), Err: err}
	}
	return rec, nil
}

// TotalDevices returns the number of registered devices. If the ledger does
// not answer within the count timeout, it logs a warning and reports zero.
func (a *Adapter) TotalDevices(ctx context.Context) (total uint64, err error) {
	ctx, end := a.observe(ctx, "total_devices")
	defer func() { end(err) }()

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		n   *big.Int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := a.backend.TotalDevices(callCtx)
		done <- result{n: n, err: err}
	}()

	timer := time.NewTimer(a.countTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return 0, &LedgerError{Op: "total devices", Err: r.err}
		}
		n, err := toUint64(r.n)
		if err != nil {
			return 0, &LedgerError{Op: "total devices", Err: err}
		}
		return n, nil
	case <-timer.C:
		slog.Warn("ledger: total devices timed out, reporting zero", "timeout", a.countTimeout)
		return 0, nil
	case <-ctx.Done():
		return 0, &LedgerError{Op: "total devices", Err: ctx.Err()}
	}
}

// Balance returns the operator account's native balance in ether units.
func (a *Adapter) Balance(ctx context.Context) (balance string, err error) {
	ctx, end := a.observe(ctx, "balance")
	defer func() { end(err) }()

	wei, err := a.backend.Balance(ctx)
	if err != nil {
		return "", &LedgerError{Op: "balance", Err: err}
	}
	if wei == nil {
		return "", &LedgerError{Op: "balance", Err: errors.New("empty balance")}
	}
	return FormatEther(wei), nil
}

func (a *Adapter) observe(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := a.tracer.Start(ctx, "ledger."+op)
	start := time.Now()
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		a.callDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
		span.End()
	}
}

func checkReceipt(receipt *types.Receipt) error {
	if receipt == nil {
		return errors.New("no receipt")
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return fmt.Errorf("transaction %s reverted", receipt.TxHash.Hex())
	}
	return nil
}

func normalizeDevice(raw RawDevice) (*domain.DeviceRecord, error) {
	id, err := toUint64(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}
	registeredAt, err := toTime(raw.RegisteredAt)
	if err != nil {
		return nil, fmt.Errorf("registeredAt: %w", err)
	}
	lastUpdated, err := toTime(raw.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("lastUpdated: %w", err)
	}
	return &domain.DeviceRecord{
		ID:           id,
		DeviceType:   domain.DeviceType(raw.DeviceType),
		Status:       domain.Status(raw.Status),
		Owner:        raw.RegisteredBy.Hex(),
		RegisteredAt: registeredAt,
		LastUpdated:  lastUpdated,
	}, nil
}

func toUint64(n *big.Int) (uint64, error) {
	if n == nil {
		return 0, errors.New("missing integer")
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("integer %s out of range", n)
	}
	return n.Uint64(), nil
}

func toTime(seconds *big.Int) (time.Time, error) {
	if seconds == nil || !seconds.IsInt64() || seconds.Sign() < 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp %v", seconds)
	}
	return time.Unix(seconds.Int64(), 0).UTC(), nil
}

var weiPerEther = big.NewInt(1_000_000_000_000_000_000)

// FormatEther renders a wei amount in ether with trailing zeros trimmed,
// always keeping one fractional digit ("1.0", "0.25").
func FormatEther(wei *big.Int) string {
	sign := ""
	v := new(big.Int).Set(wei)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	whole, frac := new(big.Int).QuoRem(v, weiPerEther, new(big.Int))
	digits := frac.String()
	fracStr := strings.TrimRight(strings.Repeat("0", 18-len(digits))+digits, "0")
	if fracStr == "" {
		fracStr = "0"
	}
	return sign + whole.String() + "." + fracStr
}
