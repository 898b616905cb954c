// Package chaintest provides a testify mock of chain.Reader.
package chaintest

import (
	"context"

	"github.com/injops/dashboard/internal/chain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockReader struct {
	mock.Mock
}

var _ chain.Reader = (*MockReader)(nil)

func (m *MockReader) Tokens(ctx context.Context) ([]chain.Token, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.Token), args.Error(1)
}

func (m *MockReader) SpotMarkets(ctx context.Context) ([]chain.SpotMarket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.SpotMarket), args.Error(1)
}

func (m *MockReader) DerivativeMarkets(ctx context.Context) ([]chain.DerivativeMarket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.DerivativeMarket), args.Error(1)
}

func (m *MockReader) Positions(ctx context.Context) ([]chain.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.Position), args.Error(1)
}

func (m *MockReader) OraclePrice(ctx context.Context, oracle chain.Oracle) (decimal.Decimal, error) {
	args := m.Called(ctx, oracle)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockReader) InsuranceFunds(ctx context.Context) ([]chain.InsuranceFund, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.InsuranceFund), args.Error(1)
}

func (m *MockReader) Redemptions(ctx context.Context, filter chain.RedemptionFilter) ([]chain.Redemption, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.Redemption), args.Error(1)
}
