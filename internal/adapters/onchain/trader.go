package onchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

// allowanceThreshold is the allowance (in token units) below which the router
// is re-approved for MaxUint256.
const allowanceThreshold = 1e40

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Trader implements ports.SwapExecutor and ports.RoundCloser against the
// competition's router.
type Trader struct {
	c           *Client
	competition common.Address
	router      common.Address
}

// NewTrader creates a trader for the given competition and router.
func NewTrader(c *Client, competition, router string) (*Trader, error) {
	comp, err := parseAddress("competition", competition)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewTrader: %w", err)
	}
	r, err := parseAddress("router", router)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewTrader: %w", err)
	}
	return &Trader{c: c, competition: comp, router: r}, nil
}

// StableToken returns the competition's USDM() address.
func (t *Trader) StableToken(ctx context.Context) (string, error) {
	addr, err := t.c.callAddress(ctx, competitionABI, t.competition, "USDM")
	if err != nil {
		return "", fmt.Errorf("onchain.StableToken: %w", err)
	}
	if addr == (common.Address{}) {
		return "", errors.New("onchain.StableToken: competition returned zero address")
	}
	return addr.Hex(), nil
}

// EnsureAllowance approves the router for MaxUint256 of token when the current
// allowance is below allowanceThreshold.
func (t *Trader) EnsureAllowance(ctx context.Context, token string) error {
	tok, err := parseAddress("token", token)
	if err != nil {
		return fmt.Errorf("onchain.EnsureAllowance: %w", err)
	}

	allowance, err := t.c.callUint(ctx, erc20ABI, tok, "allowance", t.c.Address(), t.router)
	if err != nil {
		return fmt.Errorf("onchain.EnsureAllowance: check allowance: %w", err)
	}
	if fromWei(allowance, t.c.Decimals(ctx, tok)) >= allowanceThreshold {
		slog.Debug("onchain: router allowance sufficient", "token", tok.Hex())
		return nil
	}

	slog.Info("onchain: approving router", "token", tok.Hex(), "router", t.router.Hex())
	data, err := erc20ABI.Pack("approve", t.router, maxUint256)
	if err != nil {
		return fmt.Errorf("onchain.EnsureAllowance: pack: %w", err)
	}
	_, hash, err := t.c.sendTx(ctx, tok, data)
	if err != nil {
		return fmt.Errorf("onchain.EnsureAllowance: approve %s: %w", tok.Hex(), err)
	}
	slog.Info("onchain: router approved", "token", tok.Hex(), "tx", hash.Hex())
	return nil
}

// Quote returns getAmountsOut(amountIn, [tokenIn, tokenOut]) in tokenOut units.
func (t *Trader) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (float64, error) {
	in, err := parseAddress("tokenIn", tokenIn)
	if err != nil {
		return 0, fmt.Errorf("onchain.Quote: %w", err)
	}
	out, err := parseAddress("tokenOut", tokenOut)
	if err != nil {
		return 0, fmt.Errorf("onchain.Quote: %w", err)
	}

	vals, err := t.c.call(ctx, routerABI, t.router, "getAmountsOut",
		toWei(amountIn, t.c.Decimals(ctx, in)), []common.Address{in, out})
	if err != nil {
		return 0, fmt.Errorf("onchain.Quote: %w", err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return 0, fmt.Errorf("onchain.Quote: unexpected getAmountsOut result %v", vals[0])
	}
	return fromWei(amounts[len(amounts)-1], t.c.Decimals(ctx, out)), nil
}

// Swap submits swapExactTokensForTokens and waits for the receipt. The
// received amount is read from the tokenOut Transfer logs to the recipient.
func (t *Trader) Swap(ctx context.Context, req domain.SwapRequest) (domain.TradeOutcome, error) {
	outcome := domain.TradeOutcome{
		Action:     req.Action,
		AmountIn:   req.AmountIn,
		ExecutedAt: time.Now().UTC(),
	}

	data, tokenOut, recipient, err := t.packSwap(ctx, req)
	if err != nil {
		outcome.Error = err.Error()
		return outcome, fmt.Errorf("onchain.Swap: %w", err)
	}

	receipt, hash, err := t.c.sendTx(ctx, t.router, data)
	if hash != (common.Hash{}) {
		outcome.TxHash = hash.Hex()
	}
	if receipt != nil {
		outcome.GasUsed = receipt.GasUsed
	}
	if err != nil {
		outcome.Error = err.Error()
		return outcome, fmt.Errorf("onchain.Swap: %w", err)
	}

	received := transferredTo(receipt.Logs, tokenOut, recipient)
	outcome.AmountOut = fromWei(received, t.c.Decimals(ctx, tokenOut))
	outcome.Success = true
	return outcome, nil
}

func (t *Trader) packSwap(ctx context.Context, req domain.SwapRequest) ([]byte, common.Address, common.Address, error) {
	in, err := parseAddress("tokenIn", req.TokenIn)
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	out, err := parseAddress("tokenOut", req.TokenOut)
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	recipient := t.c.Address()
	if req.Recipient != "" {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			return nil, common.Address{}, common.Address{}, err
		}
	}

	amountIn := toWei(req.AmountIn, t.c.Decimals(ctx, in))
	if amountIn.Sign() <= 0 {
		return nil, common.Address{}, common.Address{}, fmt.Errorf("amount %v rounds to zero", req.AmountIn)
	}
	minOut := toWei(req.MinAmountOut, t.c.Decimals(ctx, out))

	data, err := routerABI.Pack("swapExactTokensForTokens",
		amountIn,
		minOut,
		[]common.Address{in, out},
		recipient,
		big.NewInt(req.Deadline.Unix()),
	)
	if err != nil {
		return nil, common.Address{}, common.Address{}, fmt.Errorf("pack: %w", err)
	}
	return data, out, recipient, nil
}

// EndRound calls endRound() on the competition and waits for the receipt.
func (t *Trader) EndRound(ctx context.Context) error {
	data, err := competitionABI.Pack("endRound")
	if err != nil {
		return fmt.Errorf("onchain.EndRound: pack: %w", err)
	}
	_, hash, err := t.c.sendTx(ctx, t.competition, data)
	if err != nil {
		return fmt.Errorf("onchain.EndRound: %w", err)
	}
	slog.Info("onchain: endRound mined", "tx", hash.Hex())
	return nil
}

// transferredTo sums ERC20 Transfer(_, to, value) logs emitted by token.
func transferredTo(logs []*types.Log, token, to common.Address) *big.Int {
	total := new(big.Int)
	topic := erc20ABI.Events["Transfer"].ID
	for _, l := range logs {
		if l == nil || l.Address != token || len(l.Topics) != 3 || l.Topics[0] != topic {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != to {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(l.Data))
	}
	return total
}
