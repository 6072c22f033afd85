package onchain

// client.go: shared go-ethereum plumbing for the round bot.
//
// Handles:
//   - Key loading and chain ID discovery
//   - Read-only contract calls (pack → CallContract → unpack)
//   - Signed transactions with gas estimation and receipt polling
//   - Per-token decimals cache and wei ↔ float conversion

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	// Fallback gas limit when estimation fails
	defaultGasLimit = uint64(300_000)

	// Gas price cache lifetime
	gasPriceUpdateInterval = 1 * time.Minute

	receiptPollInterval = 3 * time.Second
	receiptTimeout      = 2 * time.Minute

	defaultDecimals = uint8(18)
)

// ErrReverted is returned when a transaction is mined with status 0.
var ErrReverted = errors.New("transaction reverted on-chain")

// backend is the subset of *ethclient.Client used by this package.
type backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Client wraps an RPC connection and the trading account's key.
type Client struct {
	eth      backend
	key      *ecdsa.PrivateKey
	address  common.Address
	chainID  *big.Int
	gasLimit uint64 // 0 = estimate

	receiptPoll time.Duration

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
	decimals     map[common.Address]uint8
}

// Dial connects to rpcURL and loads privateKeyHex (with or without 0x).
// chainID 0 reads the chain ID from the node.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, chainID int64, gasLimit uint64) (*Client, error) {
	key, err := parseKey(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("onchain.Dial: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain.Dial: dial rpc: %w", err)
	}

	id := big.NewInt(chainID)
	if chainID == 0 {
		id, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("onchain.Dial: chain id: %w", err)
		}
	}

	c := newClient(eth, key, id, gasLimit)
	slog.Info("onchain: connected", "account", c.address.Hex(), "chain_id", id.String())
	return c, nil
}

func newClient(eth backend, key *ecdsa.PrivateKey, chainID *big.Int, gasLimit uint64) *Client {
	return &Client{
		eth:         eth,
		key:         key,
		address:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:     chainID,
		gasLimit:    gasLimit,
		receiptPoll: receiptPollInterval,
		decimals:    make(map[common.Address]uint8),
	}
}

func parseKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// Address returns the trading account.
func (c *Client) Address() common.Address { return c.address }

// Close releases the RPC connection.
func (c *Client) Close() { c.eth.Close() }

// call packs method/args with contract, runs eth_call against to and unpacks the result.
func (c *Client) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{From: c.address, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}

	vals, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return vals, nil
}

func (c *Client) callAddress(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (common.Address, error) {
	vals, err := c.call(ctx, contract, to, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected type %T", method, vals[0])
	}
	return addr, nil
}

func (c *Client) callUint(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	vals, err := c.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, vals[0])
	}
	return v, nil
}

// balanceOf returns the ERC20 balance of the trading account in wei.
func (c *Client) balanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	return c.callUint(ctx, erc20ABI, token, "balanceOf", c.address)
}

// Decimals returns the token's decimals, cached after the first call.
// Tokens that do not implement decimals() are treated as 18.
func (c *Client) Decimals(ctx context.Context, token common.Address) uint8 {
	c.mu.RLock()
	d, ok := c.decimals[token]
	c.mu.RUnlock()
	if ok {
		return d
	}

	d = defaultDecimals
	vals, err := c.call(ctx, erc20ABI, token, "decimals")
	if err != nil {
		slog.Debug("onchain: decimals() failed, assuming 18", "token", token.Hex(), "err", err)
		return d
	}
	if v, ok := vals[0].(uint8); ok {
		d = v
	}

	c.mu.Lock()
	c.decimals[token] = d
	c.mu.Unlock()
	return d
}

// sendTx signs and sends a transaction calling to with data, then waits for
// the receipt. A reverted receipt is returned together with ErrReverted.
func (c *Client) sendTx(ctx context.Context, to common.Address, data []byte) (*types.Receipt, common.Hash, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := c.getGasPrice(ctx)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("gas price: %w", err)
	}

	gasLimit := c.gasLimit
	if gasLimit == 0 {
		gasLimit, err = c.eth.EstimateGas(ctx, ethereum.CallMsg{
			From:     c.address,
			To:       &to,
			GasPrice: gasPrice,
			Data:     data,
		})
		if err != nil {
			// Fall back to conservative limit
			gasLimit = defaultGasLimit
			slog.Warn("onchain: gas estimate failed, using default", "err", err, "limit", defaultGasLimit)
		}
		// Add 20% buffer
		gasLimit = gasLimit * 12 / 10
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	hash := signed.Hash()
	slog.Debug("onchain: transaction sent", "to", to.Hex(), "tx", hash.Hex(), "gas", gasLimit)

	receiptCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := c.waitForReceipt(receiptCtx, hash)
	if err != nil {
		return nil, hash, fmt.Errorf("wait receipt %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, hash, fmt.Errorf("%s: %w", hash.Hex(), ErrReverted)
	}
	return receipt, hash, nil
}

// getGasPrice returns the current gas price, with caching to avoid excessive RPC calls.
func (c *Client) getGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	cached := c.cachedGasWei
	updatedAt := c.gasUpdatedAt
	c.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached, nil
	}

	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	// Add 10% buffer for faster inclusion (copy to avoid mutating SuggestGasPrice return)
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	c.mu.Lock()
	c.cachedGasWei = buffered
	c.gasUpdatedAt = time.Now()
	c.mu.Unlock()

	return buffered, nil
}

// waitForReceipt polls for a transaction receipt until confirmed or timeout.
func (c *Client) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := c.eth.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

// toWei converts a token amount to its integer base units, truncating.
// Non-positive and non-finite amounts map to zero.
func toWei(amount float64, decimals uint8) *big.Int {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return big.NewInt(0)
	}
	return decimal.NewFromFloat(amount).Shift(int32(decimals)).BigInt()
}

// fromWei converts integer base units to a token amount.
func fromWei(v *big.Int, decimals uint8) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).InexactFloat64()
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}
