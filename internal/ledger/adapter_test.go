package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ewaste-tracker/backend/internal/device/domain"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testOperator = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testTxHash   = common.HexToHash("0xabc123")
)

// fakeBackend implements Backend in memory.
type fakeBackend struct {
	receipt     *types.Receipt
	submitErr   error
	device      RawDevice
	deviceErr   error
	total       *big.Int
	totalErr    error
	totalBlock  chan struct{}
	balance     *big.Int
	balanceErr  error
	totalCalls  int
	lastStatus  string
	lastUpdated *big.Int
}

func (f *fakeBackend) SubmitRegistration(ctx context.Context, deviceType string) (*types.Receipt, error) {
	return f.receipt, f.submitErr
}

func (f *fakeBackend) SubmitStatusUpdate(ctx context.Context, deviceID *big.Int, status string) (*types.Receipt, error) {
	f.lastUpdated = deviceID
	f.lastStatus = status
	return f.receipt, f.submitErr
}

func (f *fakeBackend) GetDevice(ctx context.Context, deviceID *big.Int) (RawDevice, error) {
	return f.device, f.deviceErr
}

func (f *fakeBackend) TotalDevices(ctx context.Context) (*big.Int, error) {
	f.totalCalls++
	if f.totalBlock != nil {
		select {
		case <-f.totalBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.total, f.totalErr
}

func (f *fakeBackend) Balance(ctx context.Context) (*big.Int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeBackend) ContractAddress() common.Address { return testContract }

func registrationLog(addr common.Address, id int64) *types.Log {
	return &types.Log{
		Address: addr,
		Topics: []common.Hash{
			DeviceRegisteredTopic,
			common.BigToHash(big.NewInt(id)),
			common.BytesToHash(testOperator.Bytes()),
		},
	}
}

func successReceipt(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: testTxHash, Logs: logs}
}

func TestAdapter_RegisterDevice_FromEvent(t *testing.T) {
	other := common.HexToAddress("0x0000000000000000000000000000000000000001")
	backend := &fakeBackend{receipt: successReceipt(
		registrationLog(other, 99),
		registrationLog(testContract, 42),
		registrationLog(testContract, 43),
	)}
	reg, err := NewAdapter(backend).RegisterDevice(context.Background(), domain.DeviceTypeLaptop)
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if reg.ID != 42 {
		t.Errorf("ID = %d, want 42", reg.ID)
	}
	if reg.ConfirmationRef != testTxHash.Hex() {
		t.Errorf("ConfirmationRef = %q, want %q", reg.ConfirmationRef, testTxHash.Hex())
	}
	if backend.totalCalls != 0 {
		t.Errorf("fallback counter queried %d times, want 0", backend.totalCalls)
	}
}

func TestAdapter_RegisterDevice_FallbackToCounter(t *testing.T) {
	backend := &fakeBackend{receipt: successReceipt(), total: big.NewInt(7)}
	reg, err := NewAdapter(backend).RegisterDevice(context.Background(), domain.DeviceTypePhone)
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if reg.ID != 7 {
		t.Errorf("ID = %d, want 7", reg.ID)
	}
	if backend.totalCalls != 1 {
		t.Errorf("totalCalls = %d, want 1", backend.totalCalls)
	}
}

func TestAdapter_RegisterDevice_ResolutionFailure(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
	}{
		{"counter error", &fakeBackend{receipt: successReceipt(), totalErr: errors.New("rpc down")}},
		{"counter zero", &fakeBackend{receipt: successReceipt(), total: big.NewInt(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(tt.backend).RegisterDevice(context.Background(), domain.DeviceTypeTV)
			if !errors.Is(err, domain.ErrIdentifierResolution) {
				t.Fatalf("err = %v, want ErrIdentifierResolution", err)
			}
			var ire *IdentifierResolutionError
			if !errors.As(err, &ire) {
				t.Fatalf("err is %T, want *IdentifierResolutionError", err)
			}
			if ire.ConfirmationRef != testTxHash.Hex() {
				t.Errorf("ConfirmationRef = %q, want %q", ire.ConfirmationRef, testTxHash.Hex())
			}
		})
	}
}

func TestAdapter_RegisterDevice_LedgerFailures(t *testing.T) {
	reverted := &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: testTxHash}
	tests := []struct {
		name    string
		backend *fakeBackend
	}{
		{"submit error", &fakeBackend{submitErr: errors.New("insufficient funds")}},
		{"reverted", &fakeBackend{receipt: reverted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(tt.backend).RegisterDevice(context.Background(), domain.DeviceTypeLaptop)
			if !errors.Is(err, domain.ErrLedgerCall) {
				t.Fatalf("err = %v, want ErrLedgerCall", err)
			}
			if errors.Is(err, domain.ErrIdentifierResolution) {
				t.Errorf("err = %v, should not be an identifier resolution failure", err)
			}
		})
	}
}

func TestAdapter_UpdateStatus(t *testing.T) {
	backend := &fakeBackend{receipt: successReceipt()}
	ref, err := NewAdapter(backend).UpdateStatus(context.Background(), 3, domain.StatusCollected)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if ref != testTxHash.Hex() {
		t.Errorf("ref = %q, want %q", ref, testTxHash.Hex())
	}
	if backend.lastUpdated.Uint64() != 3 || backend.lastStatus != "Collected" {
		t.Errorf("submitted (%v, %q), want (3, Collected)", backend.lastUpdated, backend.lastStatus)
	}

	backend.submitErr = errors.New("reverted: device does not exist")
	if _, err := NewAdapter(backend).UpdateStatus(context.Background(), 3, domain.StatusCollected); !errors.Is(err, domain.ErrLedgerCall) {
		t.Errorf("err = %v, want ErrLedgerCall", err)
	}
}

func TestAdapter_GetDevice_Normalizes(t *testing.T) {
	backend := &fakeBackend{device: RawDevice{
		ID:           big.NewInt(5),
		DeviceType:   "Phone",
		Status:       "Collected",
		RegisteredBy: testOperator,
		RegisteredAt: big.NewInt(1700000000),
		LastUpdated:  big.NewInt(1700000600),
	}}
	rec, err := NewAdapter(backend).GetDevice(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if rec.ID != 5 || rec.DeviceType != domain.DeviceTypePhone || rec.Status != domain.StatusCollected {
		t.Errorf("record = %+v", rec)
	}
	if rec.Owner != testOperator.Hex() {
		t.Errorf("Owner = %q, want %q", rec.Owner, testOperator.Hex())
	}
	if want := time.Unix(1700000000, 0).UTC(); !rec.RegisteredAt.Equal(want) || rec.RegisteredAt.Location() != time.UTC {
		t.Errorf("RegisteredAt = %v, want %v", rec.RegisteredAt, want)
	}
	if want := time.Unix(1700000600, 0).UTC(); !rec.LastUpdated.Equal(want) {
		t.Errorf("LastUpdated = %v, want %v", rec.LastUpdated, want)
	}
}

func TestAdapter_GetDevice_Errors(t *testing.T) {
	backend := &fakeBackend{deviceErr: errors.New("execution reverted: Device does not exist")}
	if _, err := NewAdapter(backend).GetDevice(context.Background(), 9); !errors.Is(err, domain.ErrLedgerCall) {
		t.Errorf("err = %v, want ErrLedgerCall", err)
	}

	huge, _ := new(big.Int).SetString("100000000000000000000000", 10)
	backend = &fakeBackend{device: RawDevice{ID: huge, RegisteredAt: big.NewInt(1), LastUpdated: big.NewInt(1)}}
	if _, err := NewAdapter(backend).GetDevice(context.Background(), 9); !errors.Is(err, domain.ErrLedgerCall) {
		t.Errorf("out of range id: err = %v, want ErrLedgerCall", err)
	}
}

func TestAdapter_TotalDevices(t *testing.T) {
	backend := &fakeBackend{total: big.NewInt(12)}
	n, err := NewAdapter(backend).TotalDevices(context.Background())
	if err != nil {
		t.Fatalf("TotalDevices: %v", err)
	}
	if n != 12 {
		t.Errorf("TotalDevices = %d, want 12", n)
	}

	backend = &fakeBackend{totalErr: errors.New("connection refused")}
	if _, err := NewAdapter(backend).TotalDevices(context.Background()); !errors.Is(err, domain.ErrLedgerCall) {
		t.Errorf("err = %v, want ErrLedgerCall", err)
	}
}

func TestAdapter_TotalDevices_TimeoutReportsZero(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	backend := &fakeBackend{total: big.NewInt(12), totalBlock: block}
	n, err := NewAdapter(backend, WithCountTimeout(20*time.Millisecond)).TotalDevices(context.Background())
	if err != nil {
		t.Fatalf("TotalDevices: %v", err)
	}
	if n != 0 {
		t.Errorf("TotalDevices = %d, want 0 on timeout", n)
	}
}

func TestAdapter_Balance(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	got, err := NewAdapter(&fakeBackend{balance: wei}).Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got != "1.5" {
		t.Errorf("Balance = %q, want 1.5", got)
	}
	if _, err := NewAdapter(&fakeBackend{balanceErr: errors.New("boom")}).Balance(context.Background()); !errors.Is(err, domain.ErrLedgerCall) {
		t.Errorf("err = %v, want ErrLedgerCall", err)
	}
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  string
		want string
	}{
		{"0", "0.0"},
		{"1000000000000000000", "1.0"},
		{"250000000000000000", "0.25"},
		{"1", "0.000000000000000001"},
		{"12345678900000000000", "12.3456789"},
	}
	for _, tt := range tests {
		wei, _ := new(big.Int).SetString(tt.wei, 10)
		if got := FormatEther(wei); got != tt.want {
			t.Errorf("FormatEther(%s) = %q, want %q", tt.wei, got, tt.want)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := map[string]string{
		"5FbDB2315678afecb367f032d93F642f64180aa3":    "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"0x5FbDB2315678afecb367f032d93F642f64180aa3":  "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"  5FbDB2315678afecb367f032d93F642f64180aa3 ": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}
	for in, want := range tests {
		if got := NormalizeAddress(in); got != want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", in, got, want)
		}
	}
}
