package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Contract is the go-ethereum Backend for the device registry contract.
// Transactions are signed with the operator key.
type Contract struct {
	client  *ethclient.Client
	bound   *bind.BoundContract
	address common.Address
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

// deviceTuple mirrors the getDevice return tuple; field names must match the
// ABI component names for abi.ConvertType.
type deviceTuple struct {
	Id           *big.Int
	DeviceType   string
	Status       string
	RegisteredBy common.Address
	RegisteredAt *big.Int
	LastUpdated  *big.Int
}

// NormalizeAddress trims s and adds the 0x prefix when missing.
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return s
}

// Dial connects to the RPC endpoint and binds the contract at contractAddress.
func Dial(ctx context.Context, rpcURL, privateKeyHex, contractAddress string) (*Contract, error) {
	if rpcURL == "" {
		return nil, errors.New("ledger: rpc url is required")
	}
	addr := NormalizeAddress(contractAddress)
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("ledger: invalid contract address %q", contractAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse private key: %w", err)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ledger: chain id: %w", err)
	}
	address := common.HexToAddress(addr)
	return &Contract{
		client:  client,
		bound:   bind.NewBoundContract(address, ContractABI, client, client, client),
		address: address,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// ContractAddress returns the bound contract address.
func (c *Contract) ContractAddress() common.Address { return c.address }

// OperatorAddress returns the address transactions are sent from.
func (c *Contract) OperatorAddress() common.Address { return c.from }

// SubmitRegistration calls registerDevice and waits for the receipt.
func (c *Contract) SubmitRegistration(ctx context.Context, deviceType string) (*types.Receipt, error) {
	return c.transact(ctx, "registerDevice", deviceType)
}

// SubmitStatusUpdate calls updateStatus and waits for the receipt.
func (c *Contract) SubmitStatusUpdate(ctx context.Context, deviceID *big.Int, status string) (*types.Receipt, error) {
	return c.transact(ctx, "updateStatus", deviceID, status)
}

// GetDevice calls getDevice.
func (c *Contract) GetDevice(ctx context.Context, deviceID *big.Int) (RawDevice, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getDevice", deviceID); err != nil {
		return RawDevice{}, err
	}
	if len(out) != 1 {
		return RawDevice{}, fmt.Errorf("getDevice returned %d values", len(out))
	}
	t := *abi.ConvertType(out[0], new(deviceTuple)).(*deviceTuple)
	return RawDevice{
		ID:           t.Id,
		DeviceType:   t.DeviceType,
		Status:       t.Status,
		RegisteredBy: t.RegisteredBy,
		RegisteredAt: t.RegisteredAt,
		LastUpdated:  t.LastUpdated,
	}, nil
}

// TotalDevices calls getTotalDevices.
func (c *Contract) TotalDevices(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getTotalDevices"); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getTotalDevices returned %d values", len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Balance returns the operator account balance in wei at the latest block.
func (c *Contract) Balance(ctx context.Context) (*big.Int, error) {
	return c.client.BalanceAt(ctx, c.from, nil)
}

// Close closes the RPC connection.
func (c *Contract) Close() {
	c.client.Close()
}

func (c *Contract) transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("%s: transactor: %w", method, err)
	}
	opts.Context = ctx
	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: submit: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: wait for %s: %w", method, tx.Hash().Hex(), err)
	}
	return receipt, nil
}
