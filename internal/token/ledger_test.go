package token

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ecoprado/internal/ledger"
	"ecoprado/internal/platform/authz"
	"ecoprado/internal/platform/authz/mocks"
	"ecoprado/internal/redemption"
	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
	"ecoprado/pkg/testutil"
)

const (
	admin    = id.Address("admin")
	alice    = id.Address("alice")
	bob      = id.Address("bob")
	business = "Café Verde"
)

var everyone = []id.Address{admin, alice, bob}

func amt(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type LedgerSuite struct {
	suite.Suite
	ctx         context.Context
	store       *storage.Memory
	state       *ledger.State
	redemptions *redemption.Ledger
	ledger      *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = testutil.AtLedgerTime(testutil.SignedBy(context.Background(), everyone...))
	s.store = storage.NewMemory()
	state, err := ledger.Load(s.ctx, s.store)
	s.Require().NoError(err)
	s.state = state
	s.redemptions = redemption.NewLedger()
	s.ledger = NewLedger(authz.NewSignerAuthorizer(), s.redemptions)
	s.Require().NoError(s.ledger.Initialize(s.ctx, s.store, s.state, admin, "EcoPrado", "ECO"))
}

func (s *LedgerSuite) balance(addr id.Address) decimal.Decimal {
	b, err := s.ledger.BalanceOf(s.ctx, s.store, addr)
	s.Require().NoError(err)
	return b
}

func (s *LedgerSuite) assertBalance(addr id.Address, want int64) {
	s.True(amt(want).Equal(s.balance(addr)), "balance of %s: want %d, got %s", addr, want, s.balance(addr))
}

func (s *LedgerSuite) assertConserved() {
	sum := decimal.Zero
	for _, addr := range everyone {
		sum = sum.Add(s.balance(addr))
	}
	s.True(sum.Equal(s.state.TotalSupply), "supply %s != sum of balances %s", s.state.TotalSupply, sum)
}

func (s *LedgerSuite) TestInitialize() {
	s.Run("credits the initial supply to the admin", func() {
		meta, err := s.ledger.Metadata(s.state)
		s.Require().NoError(err)
		s.Equal("EcoPrado", meta.Name)
		s.Equal("ECO", meta.Symbol)
		s.Equal(uint32(7), meta.Decimals)
		s.True(ledger.InitialSupply.Equal(meta.TotalSupply))
		s.True(ledger.InitialSupply.Equal(s.balance(admin)))
		s.assertConserved()
	})

	s.Run("second initialize conflicts", func() {
		err := s.ledger.Initialize(s.ctx, s.store, s.state, alice, "Other", "OTH")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown addresses hold zero", func() {
		s.True(s.balance("stranger").IsZero())
	})
}

func (s *LedgerSuite) TestMintTransferBurnScenario() {
	initial := s.state.TotalSupply

	ok, err := s.ledger.Mint(s.ctx, s.store, s.state, alice, amt(100))
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.ledger.Transfer(s.ctx, s.store, s.state, alice, bob, amt(40))
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.ledger.Burn(s.ctx, s.store, s.state, bob, amt(10))
	s.Require().NoError(err)
	s.True(ok)

	s.assertBalance(alice, 60)
	s.assertBalance(bob, 30)
	s.True(initial.Add(amt(100)).Sub(amt(10)).Equal(s.state.TotalSupply))
	s.assertConserved()
}

func (s *LedgerSuite) TestTransfer() {
	_, err := s.ledger.Mint(s.ctx, s.store, s.state, alice, amt(50))
	s.Require().NoError(err)

	s.Run("insufficient balance changes nothing", func() {
		supply := s.state.TotalSupply
		ok, err := s.ledger.Transfer(s.ctx, s.store, s.state, alice, bob, amt(51))
		s.Require().NoError(err)
		s.False(ok)
		s.assertBalance(alice, 50)
		s.assertBalance(bob, 0)
		s.True(supply.Equal(s.state.TotalSupply))
	})

	s.Run("negative amount is refused", func() {
		ok, err := s.ledger.Transfer(s.ctx, s.store, s.state, alice, bob, amt(-5))
		s.Require().NoError(err)
		s.False(ok)
		s.assertBalance(alice, 50)
	})

	s.Run("transfer to self keeps the balance", func() {
		ok, err := s.ledger.Transfer(s.ctx, s.store, s.state, alice, alice, amt(20))
		s.Require().NoError(err)
		s.True(ok)
		s.assertBalance(alice, 50)
		s.assertConserved()
	})

	s.Run("unauthorized sender aborts", func() {
		ctx := testutil.SignedBy(context.Background(), bob)
		_, err := s.ledger.Transfer(ctx, s.store, s.state, alice, bob, amt(1))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.assertBalance(alice, 50)
	})
}

func (s *LedgerSuite) TestMintAndBurnRules() {
	s.Run("only the admin may mint", func() {
		ctx := testutil.SignedBy(context.Background(), alice)
		_, err := s.ledger.Mint(ctx, s.store, s.state, alice, amt(10))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.assertBalance(alice, 0)
	})

	s.Run("mint past the amount range is refused", func() {
		ok, err := s.ledger.Mint(s.ctx, s.store, s.state, alice, id.MaxAmount)
		s.Require().NoError(err)
		s.False(ok)
		s.assertConserved()
	})

	s.Run("burn more than held is refused", func() {
		ok, err := s.ledger.Burn(s.ctx, s.store, s.state, bob, amt(1))
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *LedgerSuite) TestRewardEcoAction() {
	tests := []struct {
		actionType string
		want       int64
	}{
		{"reciclaje", 10},
		{"reforestacion", 30},
		{"limpieza_publica", 12},
		{"compostaje", 18},
		{"otra_cosa", 5},
	}
	for _, tt := range tests {
		s.Run(tt.actionType, func() {
			before := s.balance(alice)
			minted, err := s.ledger.RewardEcoAction(s.ctx, s.store, s.state, alice, tt.actionType)
			s.Require().NoError(err)
			s.True(amt(tt.want).Equal(minted))
			s.True(before.Add(amt(tt.want)).Equal(s.balance(alice)))
		})
	}
	s.assertConserved()
}

func (s *LedgerSuite) TestRedeemTokens() {
	_, err := s.ledger.Mint(s.ctx, s.store, s.state, alice, amt(30))
	s.Require().NoError(err)

	s.Run("insufficient balance creates no record", func() {
		record, err := s.ledger.RedeemTokens(s.ctx, s.store, s.state, alice, amt(50), business)
		s.Require().NoError(err)
		s.Nil(record)
		s.assertBalance(alice, 30)
		s.Zero(s.state.RedemptionSeq)
	})

	s.Run("zero amount is refused", func() {
		record, err := s.ledger.RedeemTokens(s.ctx, s.store, s.state, alice, decimal.Zero, business)
		s.Require().NoError(err)
		s.Nil(record)
	})

	s.Run("burns and logs the redemption", func() {
		supply := s.state.TotalSupply
		record, err := s.ledger.RedeemTokens(s.ctx, s.store, s.state, alice, amt(20), business)
		s.Require().NoError(err)
		s.Require().NotNil(record)
		s.Equal(uint32(1), record.ID)
		s.Equal(alice, record.User)
		s.Equal(business, record.Business)
		s.Equal(testutil.LedgerTime, record.Timestamp)
		s.assertBalance(alice, 10)
		s.True(supply.Sub(amt(20)).Equal(s.state.TotalSupply))

		stored, err := s.redemptions.Get(s.ctx, s.store, 1)
		s.Require().NoError(err)
		s.NotNil(stored)
	})
}

func (s *LedgerSuite) TestUninitializedLedger() {
	state, err := ledger.Load(s.ctx, storage.NewMemory())
	s.Require().NoError(err)

	_, err = s.ledger.Metadata(state)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.ledger.Mint(s.ctx, s.store, state, alice, amt(1))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *LedgerSuite) TestSupplyMatchesBalancesForRandomOperations() {
	rng := rand.New(rand.NewPCG(7, 42))
	for i := 0; i < 500; i++ {
		from := everyone[rng.IntN(len(everyone))]
		to := everyone[rng.IntN(len(everyone))]
		amount := amt(rng.Int64N(400) - 50)

		var err error
		switch rng.IntN(3) {
		case 0:
			_, err = s.ledger.Mint(s.ctx, s.store, s.state, to, amount)
		case 1:
			_, err = s.ledger.Burn(s.ctx, s.store, s.state, from, amount)
		default:
			_, err = s.ledger.Transfer(s.ctx, s.store, s.state, from, to, amount)
		}
		s.Require().NoError(err)
		s.assertConserved()
		for _, addr := range everyone {
			s.False(s.balance(addr).IsNegative())
		}
	}
}

func TestAuthorizationPrecedesReads(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthorizer(ctrl)
	l := NewLedger(auth, redemption.NewLedger())
	ctx := context.Background()
	st := storage.NewMemory()
	state, err := ledger.Load(ctx, st)
	require.NoError(t, err)

	denied := dErrors.New(dErrors.CodeUnauthorized, "missing authorization for alice")
	auth.EXPECT().RequireAuth(ctx, alice).Return(denied).Times(3)

	_, err = l.Transfer(ctx, st, state, alice, bob, amt(1))
	assert.ErrorIs(t, err, denied)
	_, err = l.Burn(ctx, st, state, alice, amt(1))
	assert.ErrorIs(t, err, denied)
	_, err = l.RedeemTokens(ctx, st, state, alice, amt(1), business)
	assert.ErrorIs(t, err, denied)
}

func TestEcoReward(t *testing.T) {
	assert.True(t, amt(25).Equal(EcoReward("agricultura_sostenible")))
	assert.True(t, amt(8).Equal(EcoReward("ahorro_agua")))
	assert.True(t, amt(5).Equal(EcoReward("")))
}
