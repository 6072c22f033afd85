package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

// ErrTokenRotated is returned by MarketInfo when the competition already
// reports a different token than the one asked for.
var ErrTokenRotated = errors.New("round token rotated")

// pairInfo caches the pool address and ordering for one round token.
type pairInfo struct {
	pair           common.Address
	stableIsToken0 bool
}

// CompetitionQuerier implements ports.RoundQuerier with individual getters:
// currentToken() on the competition, balanceOf on both ERC20s and
// getReserves on the router factory's pair.
type CompetitionQuerier struct {
	c           *Client
	competition common.Address
	router      common.Address
	stable      common.Address

	mu      sync.Mutex
	factory common.Address
	pairs   map[common.Address]pairInfo
}

// NewCompetitionQuerier creates a querier for the given contracts.
func NewCompetitionQuerier(c *Client, competition, router, stable string) (*CompetitionQuerier, error) {
	comp, err := parseAddress("competition", competition)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewCompetitionQuerier: %w", err)
	}
	r, err := parseAddress("router", router)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewCompetitionQuerier: %w", err)
	}
	s, err := parseAddress("stable", stable)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewCompetitionQuerier: %w", err)
	}
	return &CompetitionQuerier{
		c:           c,
		competition: comp,
		router:      r,
		stable:      s,
		pairs:       make(map[common.Address]pairInfo),
	}, nil
}

// ActiveToken returns currentToken() as a checksummed hex address.
func (q *CompetitionQuerier) ActiveToken(ctx context.Context) (string, error) {
	addr, err := q.c.callAddress(ctx, competitionABI, q.competition, "currentToken")
	if err != nil {
		return "", fmt.Errorf("onchain.ActiveToken: %w", err)
	}
	return addr.Hex(), nil
}

// MarketInfo queries balances, reserves and decimals concurrently.
// A token without a pool returns zero reserves.
func (q *CompetitionQuerier) MarketInfo(ctx context.Context, token string) (domain.MarketInfo, error) {
	tok, err := parseAddress("token", token)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("onchain.MarketInfo: %w", err)
	}

	pi, err := q.pairFor(ctx, tok)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("onchain.MarketInfo: %w", err)
	}

	var (
		stableBal, tokenBal *big.Int
		r0, r1              *big.Int
		stableDec, tokenDec uint8
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stableBal, err = q.c.balanceOf(gctx, q.stable)
		return err
	})
	g.Go(func() error {
		var err error
		tokenBal, err = q.c.balanceOf(gctx, tok)
		return err
	})
	g.Go(func() error {
		if pi.pair == (common.Address{}) {
			r0, r1 = big.NewInt(0), big.NewInt(0)
			return nil
		}
		var err error
		r0, r1, err = q.reserves(gctx, pi.pair)
		return err
	})
	g.Go(func() error {
		stableDec = q.c.Decimals(gctx, q.stable)
		tokenDec = q.c.Decimals(gctx, tok)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("onchain.MarketInfo: %w", err)
	}

	stableLP, tokenLP := orderReserves(pi.stableIsToken0, r0, r1)

	return domain.MarketInfo{
		Token:         tok.Hex(),
		StableBalance: fromWei(stableBal, stableDec),
		TokenBalance:  fromWei(tokenBal, tokenDec),
		StableLP:      fromWei(stableLP, stableDec),
		TokenLP:       fromWei(tokenLP, tokenDec),
	}, nil
}

// pairFor resolves router.factory() → getPair(stable, token) → token0 once per token.
func (q *CompetitionQuerier) pairFor(ctx context.Context, token common.Address) (pairInfo, error) {
	q.mu.Lock()
	pi, ok := q.pairs[token]
	factory := q.factory
	q.mu.Unlock()
	if ok {
		return pi, nil
	}

	if factory == (common.Address{}) {
		f, err := q.c.callAddress(ctx, routerABI, q.router, "factory")
		if err != nil {
			return pairInfo{}, err
		}
		factory = f
	}

	pair, err := q.c.callAddress(ctx, factoryABI, factory, "getPair", q.stable, token)
	if err != nil {
		return pairInfo{}, err
	}
	if pair == (common.Address{}) {
		// No pool yet: don't cache, it may be created later in the round.
		return pairInfo{}, nil
	}

	token0, err := q.c.callAddress(ctx, pairABI, pair, "token0")
	if err != nil {
		return pairInfo{}, err
	}

	pi = pairInfo{pair: pair, stableIsToken0: token0 == q.stable}
	q.mu.Lock()
	q.factory = factory
	q.pairs[token] = pi
	q.mu.Unlock()
	return pi, nil
}

func (q *CompetitionQuerier) reserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	vals, err := q.c.call(ctx, pairABI, pair, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	if len(vals) < 2 {
		return nil, nil, fmt.Errorf("getReserves: expected 3 values, got %d", len(vals))
	}
	r0, ok0 := vals[0].(*big.Int)
	r1, ok1 := vals[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("getReserves: unexpected types %T, %T", vals[0], vals[1])
	}
	return r0, r1, nil
}

// orderReserves maps (reserve0, reserve1) to (stable, token).
func orderReserves(stableIsToken0 bool, r0, r1 *big.Int) (stableLP, tokenLP *big.Int) {
	if stableIsToken0 {
		return r0, r1
	}
	return r1, r0
}

// PeripheryQuerier implements ports.RoundQuerier with the single
// mmInfo(account, competition) view, which returns the token, both balances
// and both reserves in one call.
type PeripheryQuerier struct {
	c           *Client
	periphery   common.Address
	competition common.Address
	stable      common.Address
}

// NewPeripheryQuerier creates a querier backed by the periphery contract.
func NewPeripheryQuerier(c *Client, periphery, competition, stable string) (*PeripheryQuerier, error) {
	p, err := parseAddress("periphery", periphery)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewPeripheryQuerier: %w", err)
	}
	comp, err := parseAddress("competition", competition)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewPeripheryQuerier: %w", err)
	}
	s, err := parseAddress("stable", stable)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewPeripheryQuerier: %w", err)
	}
	return &PeripheryQuerier{c: c, periphery: p, competition: comp, stable: s}, nil
}

// ActiveToken returns the token field of mmInfo.
func (q *PeripheryQuerier) ActiveToken(ctx context.Context) (string, error) {
	info, err := q.mmInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("onchain.ActiveToken: %w", err)
	}
	return info.Token, nil
}

// MarketInfo returns mmInfo, or ErrTokenRotated if the round moved on.
func (q *PeripheryQuerier) MarketInfo(ctx context.Context, token string) (domain.MarketInfo, error) {
	info, err := q.mmInfo(ctx)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("onchain.MarketInfo: %w", err)
	}
	if !domain.SameToken(info.Token, token) {
		return domain.MarketInfo{}, fmt.Errorf("onchain.MarketInfo: asked %s, got %s: %w", token, info.Token, ErrTokenRotated)
	}
	return info, nil
}

func (q *PeripheryQuerier) mmInfo(ctx context.Context) (domain.MarketInfo, error) {
	vals, err := q.c.call(ctx, peripheryABI, q.periphery, "mmInfo", q.c.Address(), q.competition)
	if err != nil {
		return domain.MarketInfo{}, err
	}
	if len(vals) != 5 {
		return domain.MarketInfo{}, fmt.Errorf("mmInfo: expected 5 values, got %d", len(vals))
	}

	token, ok := vals[0].(common.Address)
	if !ok {
		return domain.MarketInfo{}, fmt.Errorf("mmInfo: unexpected token type %T", vals[0])
	}
	nums := make([]*big.Int, 4)
	for i := range nums {
		n, ok := vals[i+1].(*big.Int)
		if !ok {
			return domain.MarketInfo{}, fmt.Errorf("mmInfo: unexpected type %T at %d", vals[i+1], i+1)
		}
		nums[i] = n
	}

	if token == (common.Address{}) {
		return domain.MarketInfo{Token: token.Hex()}, nil
	}

	stableDec := q.c.Decimals(ctx, q.stable)
	tokenDec := q.c.Decimals(ctx, token)

	return domain.MarketInfo{
		Token:         token.Hex(),
		StableBalance: fromWei(nums[0], stableDec),
		TokenBalance:  fromWei(nums[1], tokenDec),
		StableLP:      fromWei(nums[2], stableDec),
		TokenLP:       fromWei(nums[3], tokenDec),
	}, nil
}
