package actions

//go:generate mockgen -source=coordinator.go -destination=mocks/mocks.go -package=mocks Minter

import (
	"context"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ecoprado/internal/actions/mocks"
	"ecoprado/internal/identity"
	"ecoprado/internal/ledger"
	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
	"ecoprado/pkg/testutil"
)

type LedgerSuite struct {
	suite.Suite
	ctx      context.Context
	store    *storage.Memory
	state    *ledger.State
	registry *identity.Registry
	ledger   *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = testutil.AtLedgerTime(context.Background())
	s.store = storage.NewMemory()
	state, err := ledger.Load(s.ctx, s.store)
	s.Require().NoError(err)
	s.state = state
	s.registry = identity.NewRegistry()
	s.ledger = NewLedger(NewCoordinator(s.registry))
}

func (s *LedgerSuite) register(userID, municipality string) {
	_, err := s.registry.Register(s.ctx, s.store, s.state, userID, userID, "ciudadano", municipality)
	s.Require().NoError(err)
}

func (s *LedgerSuite) report(userID id.UserID, actionType string) *ReportResult {
	res, err := s.ledger.Report(s.ctx, s.store, s.state, userID, actionType, "desc", "evidence://photo")
	s.Require().NoError(err)
	return res
}

func (s *LedgerSuite) TestReportCreditsRegisteredUser() {
	s.register("U1", "Querétaro")

	res := s.report("U1", "reciclaje")
	s.True(res.Credited)
	s.Equal(uint32(1), res.Record.ID)
	s.True(decimal.NewFromInt(10).Equal(res.Record.RewardAmount))
	s.True(decimal.NewFromInt(2).Equal(res.Record.CO2Saved))
	s.Equal(StatusCompleted, res.Record.Status)
	s.Equal(testutil.LedgerTime, res.Record.CreatedAt)

	account, err := s.registry.Get(s.ctx, s.store, "U1")
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(10).Equal(account.Balance))
	s.True(decimal.NewFromInt(2).Equal(account.CO2Saved))
	s.Equal(uint32(1), account.TotalActions)

	stored, err := s.ledger.Get(s.ctx, s.store, 1)
	s.Require().NoError(err)
	s.Equal(res.Record.Digest(), stored.Digest())
}

func (s *LedgerSuite) TestReportForUnknownUserStillStoresRecord() {
	res := s.report("ghost", "compostaje")
	s.False(res.Credited)
	s.True(decimal.NewFromInt(5).Equal(res.Record.RewardAmount))

	stored, err := s.ledger.Get(s.ctx, s.store, res.Record.ID)
	s.Require().NoError(err)
	s.NotNil(stored)

	account, err := s.registry.Get(s.ctx, s.store, "ghost")
	s.Require().NoError(err)
	s.Nil(account)
}

func (s *LedgerSuite) TestIDsAreSequentialFromOne() {
	for want := uint32(1); want <= 5; want++ {
		res := s.report("U1", "ahorro_agua")
		s.Equal(want, res.Record.ID)
	}
	s.Equal(uint32(5), s.state.ActionSeq)
}

func (s *LedgerSuite) TestListByUser() {
	s.report("A", "reciclaje")
	s.report("B", "reciclaje")
	s.report("A", "transporte_verde")
	s.report("A", "ahorro_agua")

	s.Run("returns the user's actions in id order", func() {
		records, err := s.ledger.ListByUser(s.ctx, s.store, "A")
		s.Require().NoError(err)
		s.Require().Len(records, 3)
		s.Equal([]uint32{1, 3, 4}, ids(records))
	})

	s.Run("a missing id hides every later action", func() {
		s.store.Delete(s.ctx, storage.NamespaceAction, strconv.Itoa(3))

		records, err := s.ledger.ListByUser(s.ctx, s.store, "A")
		s.Require().NoError(err)
		s.Equal([]uint32{1}, ids(records))
	})

	s.Run("unknown user has no actions", func() {
		records, err := s.ledger.ListByUser(s.ctx, s.store, "nobody")
		s.Require().NoError(err)
		s.Empty(records)
	})
}

func (s *LedgerSuite) TestReportRequiresUserID() {
	_, err := s.ledger.Report(s.ctx, s.store, s.state, "", "reciclaje", "", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Zero(s.state.ActionSeq)
}

func (s *LedgerSuite) TestTokenRewardMode() {
	ctrl := gomock.NewController(s.T())
	minter := mocks.NewMockMinter(ctrl)
	l := NewLedger(NewCoordinator(s.registry, WithTokenRewards(minter)))
	s.register("U1", "Querétaro")

	s.Run("mints the reward to the user's address", func() {
		minter.EXPECT().
			Mint(s.ctx, s.store, s.state, id.Address("U1"), decimal.NewFromInt(25)).
			Return(true, nil)

		res, err := l.Report(s.ctx, s.store, s.state, "U1", "agricultura_sostenible", "", "")
		s.Require().NoError(err)
		s.True(res.Credited)
	})

	s.Run("a refused mint fails the report", func() {
		minter.EXPECT().Mint(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)

		_, err := l.Report(s.ctx, s.store, s.state, "U1", "reciclaje", "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("unknown users are not minted to", func() {
		res, err := l.Report(s.ctx, s.store, s.state, "ghost", "reciclaje", "", "")
		s.Require().NoError(err)
		s.False(res.Credited)
	})
}

func ids(records []*Record) []uint32 {
	out := make([]uint32, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestRewardFor(t *testing.T) {
	tests := []struct {
		actionType string
		tokens     int64
		co2        int64
	}{
		{"reciclaje", 10, 2},
		{"transporte_verde", 15, 5},
		{"ahorro_agua", 8, 1},
		{"agricultura_sostenible", 25, 8},
		{"educacion_ambiental", 20, 3},
		{"algo_nuevo", 5, 1},
		{"", 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.actionType, func(t *testing.T) {
			r := RewardFor(tt.actionType)
			assert.True(t, decimal.NewFromInt(tt.tokens).Equal(r.Tokens))
			assert.True(t, decimal.NewFromInt(tt.co2).Equal(r.CO2Saved))
		})
	}
}

func TestParseRewardMode(t *testing.T) {
	mode, err := ParseRewardMode("")
	assert.NoError(t, err)
	assert.Equal(t, RewardModeAccount, mode)

	mode, err = ParseRewardMode("token")
	assert.NoError(t, err)
	assert.Equal(t, RewardModeToken, mode)

	_, err = ParseRewardMode("both")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestEstimateCO2(t *testing.T) {
	d := decimal.RequireFromString

	t.Run("combines emission factors", func(t *testing.T) {
		est, err := EstimateCO2(d("10"), d("5"), d("2"))
		assert.NoError(t, err)
		// 2.1 + 2.0 + 3.6
		assert.True(t, d("7.7").Equal(est.CO2SavedKg))
		assert.True(t, d("4").Equal(est.SuggestedTokens))
	})

	t.Run("suggests at least one token", func(t *testing.T) {
		est, err := EstimateCO2(decimal.Zero, decimal.Zero, decimal.Zero)
		assert.NoError(t, err)
		assert.True(t, est.CO2SavedKg.IsZero())
		assert.True(t, d("1").Equal(est.SuggestedTokens))
	})

	t.Run("rounds co2 to two decimals", func(t *testing.T) {
		est, err := EstimateCO2(d("1.333"), decimal.Zero, decimal.Zero)
		assert.NoError(t, err)
		assert.True(t, d("0.28").Equal(est.CO2SavedKg))
	})

	t.Run("rejects negative inputs", func(t *testing.T) {
		_, err := EstimateCO2(d("-1"), decimal.Zero, decimal.Zero)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
