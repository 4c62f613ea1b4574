package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
	"github.com/iho/goportfolio/internal/usecase/mocks"
)

func TestInstrumentUseCase_UpsertInstrument(t *testing.T) {
	tests := []struct {
		name        string
		existing    []domain.Instrument
		input       usecase.UpsertInstrumentInput
		expectError error
	}{
		{
			name:  "creates instrument with normalized codes",
			input: usecase.UpsertInstrumentInput{Symbol: " aapl ", Name: "Apple", Currency: "usd", PricingModel: domain.PricingUnit},
		},
		{
			name:     "redefines existing instrument",
			existing: []domain.Instrument{unitInstrument("AAPL", "USD")},
			input:    usecase.UpsertInstrumentInput{Symbol: "AAPL", Name: "Apple Inc.", Currency: "USD", PricingModel: domain.PricingUnit},
		},
		{
			name:        "rejects currency change",
			existing:    []domain.Instrument{unitInstrument("AAPL", "USD")},
			input:       usecase.UpsertInstrumentInput{Symbol: "AAPL", Currency: "EUR", PricingModel: domain.PricingUnit},
			expectError: domain.ErrCurrencyMismatch,
		},
		{
			name:        "rejects unknown pricing model",
			input:       usecase.UpsertInstrumentInput{Symbol: "AAPL", Currency: "USD", PricingModel: "guess"},
			expectError: domain.ErrInvalidPricing,
		},
		{
			name:        "rejects unknown currency",
			input:       usecase.UpsertInstrumentInput{Symbol: "AAPL", Currency: "ZZZ", PricingModel: domain.PricingUnit},
			expectError: domain.ErrInvalidCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.existing...)
			uc := f.instrumentUseCase()

			instrument, err := uc.UpsertInstrument(context.Background(), tt.input)
			if tt.expectError != nil {
				require.ErrorIs(t, err, tt.expectError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "AAPL", instrument.Symbol)
			assert.Equal(t, "USD", instrument.Currency)

			stored, err := uc.GetInstrument(context.Background(), "aapl")
			require.NoError(t, err)
			assert.Equal(t, tt.input.Name, stored.Name)
		})
	}
}

func TestInstrumentUseCase_UpsertInstrumentKeepsCreatedAt(t *testing.T) {
	created := now.Add(-72 * time.Hour)
	existing := unitInstrument("AAPL", "USD")
	existing.CreatedAt = created

	f := newFixture(t, existing)

	instrument, err := f.instrumentUseCase().UpsertInstrument(context.Background(), usecase.UpsertInstrumentInput{
		Symbol: "AAPL", Name: "Apple", Currency: "USD", PricingModel: domain.PricingUnit,
	})
	require.NoError(t, err)

	assert.Equal(t, created, instrument.CreatedAt)
	assert.Equal(t, now, instrument.UpdatedAt)
}

func TestInstrumentUseCase_SetPrice(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		price       string
		expectError error
	}{
		{name: "records price in instrument currency", symbol: "AAPL", price: "189.25"},
		{name: "rejects statement-valued instrument", symbol: "BOND", price: "100", expectError: domain.ErrWrongPricingModel},
		{name: "rejects zero price", symbol: "AAPL", price: "0", expectError: domain.ErrInvalidAmount},
		{name: "rejects unknown instrument", symbol: "MSFT", price: "10", expectError: domain.ErrInstrumentNotFound},
		{name: "rejects invalid symbol", symbol: "", price: "10", expectError: domain.ErrInvalidSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, unitInstrument("AAPL", "USD"), statementInstrument("BOND", "PLN"))

			price, err := f.instrumentUseCase().SetPrice(context.Background(), usecase.SetPriceInput{
				Symbol: tt.symbol,
				Price:  dec(tt.price),
			})
			if tt.expectError != nil {
				require.ErrorIs(t, err, tt.expectError)
				return
			}

			require.NoError(t, err)
			assert.True(t, price.Equal(domain.MustMoney(tt.price, "USD")))

			latest, err := f.prices.LatestPrice(context.Background(), "AAPL")
			require.NoError(t, err)
			assert.True(t, latest.Equal(price))
		})
	}
}

func TestInstrumentUseCase_SetStatement(t *testing.T) {
	asOf := now.Add(-24 * time.Hour)

	tests := []struct {
		name        string
		symbol      string
		invested    string
		current     string
		expectError error
	}{
		{name: "records statement", symbol: "BOND", invested: "1000", current: "1043.12"},
		{name: "rejects unit-priced instrument", symbol: "AAPL", invested: "1", current: "1", expectError: domain.ErrWrongPricingModel},
		{name: "rejects negative value", symbol: "BOND", invested: "1000", current: "-1", expectError: domain.ErrInvalidAmount},
		{name: "rejects zero invested with value", symbol: "BOND", invested: "0", current: "10", expectError: domain.ErrZeroInvested},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, unitInstrument("AAPL", "USD"), statementInstrument("BOND", "PLN"))

			statement, err := f.instrumentUseCase().SetStatement(context.Background(), usecase.SetStatementInput{
				Symbol:       tt.symbol,
				Invested:     dec(tt.invested),
				CurrentValue: dec(tt.current),
				AsOf:         &asOf,
			})
			if tt.expectError != nil {
				require.ErrorIs(t, err, tt.expectError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, asOf, statement.AsOf)
			assert.Equal(t, "PLN", statement.CurrentValue.Currency())

			stored, err := f.statements.LatestStatement(context.Background(), "BOND")
			require.NoError(t, err)
			assert.True(t, stored.CurrentValue.Equal(domain.MustMoney(tt.current, "PLN")))
		})
	}
}

func TestInstrumentUseCase_PropagatesRepositoryErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInstrumentRepository(ctrl)
	boom := errors.New("connection reset")

	repo.EXPECT().Get(gomock.Any(), "AAPL").Return(nil, boom)

	uc := usecase.NewInstrumentUseCase(repo, mocks.NewMockPriceRepository(ctrl), mocks.NewMockStatementRepository(ctrl),
		mocks.FixedClock{At: now}, zerolog.Nop())

	_, err := uc.UpsertInstrument(context.Background(), usecase.UpsertInstrumentInput{
		Symbol: "AAPL", Currency: "USD", PricingModel: domain.PricingUnit,
	})
	assert.ErrorIs(t, err, boom)
}

func TestInstrumentUseCase_ListInstrumentsClampsPagination(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInstrumentRepository(ctrl)

	repo.EXPECT().List(gomock.Any(), 500, 0).Return([]*domain.Instrument{}, nil)

	uc := usecase.NewInstrumentUseCase(repo, nil, nil, mocks.FixedClock{At: now}, zerolog.Nop())

	_, err := uc.ListInstruments(context.Background(), 10000, -3)
	require.NoError(t, err)
}
