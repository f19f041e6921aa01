package decision

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"creditflow-backend/internal/adapter/repository/mysql"
	decisionDomain "creditflow-backend/internal/domain/decision"
	"creditflow-backend/internal/domain/loan"
	"creditflow-backend/internal/domain/pricing"
	"creditflow-backend/internal/domain/uow"
	"creditflow-backend/internal/testutil/eventmock"
	"creditflow-backend/internal/testutil/loanmock"
	"creditflow-backend/internal/testutil/uowmock"
	ucloan "creditflow-backend/internal/usecase/loan"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type engine struct {
	loans     *ucloan.Usecase
	decisions *Usecase
	events    *eventmock.Recorder
	db        *gorm.DB
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection: :memory: is per connection. It also means transactions
	// run one at a time, so losers here fail the up-front version read.
	// TestDecide_VersionPredicateMatchesNoRows covers the UPDATE predicate.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, mysql.Migrate(db))

	loanRepo := mysql.NewLoanRepository(db)
	tx := mysql.NewGormUoW(db)
	rec := &eventmock.Recorder{}
	return &engine{
		loans:     ucloan.NewUsecase(loanRepo, tx, rec),
		decisions: NewUsecase(loanRepo, mysql.NewDecisionRepository(db), tx, rec),
		events:    rec,
		db:        db,
	}
}

func (e *engine) submitted(t *testing.T, applicant loan.Actor) *ucloan.LoanDTO {
	t.Helper()
	ctx := context.Background()
	created, err := e.loans.Create(ctx, applicant, ucloan.ApplicationInput{
		LoanAmount:      decimal.NewFromInt(10000),
		TermMonths:      36,
		Purpose:         "Car",
		EmployerName:    "Acme",
		JobTitle:        "Engineer",
		YearsEmployed:   2,
		MonthlyIncome:   decimal.NewFromInt(3000),
		MonthlyExpenses: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	sub, err := e.loans.Submit(ctx, applicant, created.LoanID, created.Version)
	require.NoError(t, err)
	return sub
}

func TestScenario_CreatePricesApplication(t *testing.T) {
	e := newEngine(t)
	dto, err := e.loans.Create(context.Background(), owner, ucloan.ApplicationInput{
		LoanAmount:      decimal.NewFromInt(10000),
		TermMonths:      36,
		YearsEmployed:   2,
		MonthlyIncome:   decimal.NewFromInt(3000),
		MonthlyExpenses: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Contains(t, []pricing.RiskTier{pricing.TierLow, pricing.TierMedium}, dto.RiskTier)
	assert.True(t, dto.InterestRate.GreaterThanOrEqual(decimal.NewFromInt(3)), "rate %s", dto.InterestRate)
	assert.True(t, dto.InterestRate.LessThanOrEqual(decimal.RequireFromString("8.5")), "rate %s", dto.InterestRate)
	assert.True(t, dto.MonthlyPayment.IsPositive())
}

func TestScenario_SubmitZeroAmount(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	dto, err := e.loans.Create(ctx, owner, ucloan.ApplicationInput{
		LoanAmount:    decimal.Zero,
		TermMonths:    12,
		MonthlyIncome: decimal.NewFromInt(3000),
	})
	require.NoError(t, err)

	_, err = e.loans.Submit(ctx, owner, dto.LoanID, dto.Version)
	require.ErrorIs(t, err, loan.ErrInvalidTransition)

	got, err := e.loans.Get(ctx, owner, dto.LoanID)
	require.NoError(t, err)
	assert.Equal(t, string(loan.StatusDraft), got.Status)
	assert.Equal(t, dto.Version, got.Version)
}

func TestScenario_StaleReviewerGetsConflict(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sub := e.submitted(t, owner)

	// both reviewers load V1
	seenA, err := e.loans.Get(ctx, bankerA, sub.LoanID)
	require.NoError(t, err)
	seenB, err := e.loans.Get(ctx, bankerB, sub.LoanID)
	require.NoError(t, err)
	require.Equal(t, seenA.Version, seenB.Version)

	won, err := e.decisions.Decide(ctx, bankerB, DecideInput{
		LoanID: sub.LoanID, ExpectedVersion: seenB.Version, Kind: loan.DecisionApprove, Comments: "Verified income",
	})
	require.NoError(t, err)
	assert.NotEqual(t, seenB.Version, won.Version)

	_, err = e.decisions.Decide(ctx, bankerA, DecideInput{
		LoanID: sub.LoanID, ExpectedVersion: seenA.Version, Kind: loan.DecisionReject, Comments: "Too risky for us",
	})
	require.ErrorIs(t, err, loan.ErrConcurrencyConflict)

	final, err := e.loans.Get(ctx, owner, sub.LoanID)
	require.NoError(t, err)
	assert.Equal(t, string(loan.StatusApproved), final.Status)
	assert.Equal(t, won.Version, final.Version)
}

func TestScenario_EmptyCommentsLeaveStatus(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sub := e.submitted(t, owner)

	_, err := e.decisions.Decide(ctx, bankerA, DecideInput{
		LoanID: sub.LoanID, ExpectedVersion: sub.Version, Kind: loan.DecisionApprove, Comments: "",
	})
	require.ErrorIs(t, err, loan.ErrValidation)

	got, err := e.loans.Get(ctx, owner, sub.LoanID)
	require.NoError(t, err)
	assert.Equal(t, string(loan.StatusSubmitted), got.Status)
	assert.Equal(t, sub.Version, got.Version)
}

func TestScenario_TerminalAlwaysInvalidTransition(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sub := e.submitted(t, owner)

	won, err := e.decisions.Decide(ctx, bankerA, DecideInput{
		LoanID: sub.LoanID, ExpectedVersion: sub.Version, Kind: loan.DecisionReject, Comments: "Insufficient income",
	})
	require.NoError(t, err)

	for _, v := range []string{won.Version, "ffffffffffffffffffffffffffffffff"} {
		_, err = e.decisions.Decide(ctx, bankerB, DecideInput{
			LoanID: sub.LoanID, ExpectedVersion: v, Kind: loan.DecisionApprove, Comments: "Overruling this",
		})
		require.ErrorIs(t, err, loan.ErrInvalidTransition, "version %s", v)
	}
}

// Exactly one of several reviewers holding the same version wins. The sqlite
// engine serializes the transactions, so this checks the outcome, not the
// interleaving.
func TestDecide_ConcurrentSameVersion(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sub := e.submitted(t, owner)

	const reviewers = 6
	results := make([]error, reviewers)
	var wg sync.WaitGroup
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := loan.DecisionApprove
			if i%2 == 1 {
				kind = loan.DecisionReject
			}
			_, results[i] = e.decisions.Decide(ctx, loan.Actor{UserID: fmt.Sprintf("banker-%d", i), IsReviewer: true}, DecideInput{
				LoanID: sub.LoanID, ExpectedVersion: sub.Version, Kind: kind, Comments: "Concurrent decision",
			})
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range results {
		if err == nil {
			require.Equal(t, -1, winner, "two decisions succeeded")
			winner = i
			continue
		}
		require.ErrorIs(t, err, loan.ErrConcurrencyConflict)
	}
	require.NotEqual(t, -1, winner, "no decision succeeded")

	final, err := e.loans.Get(ctx, owner, sub.LoanID)
	require.NoError(t, err)
	want := loan.StatusApproved
	if winner%2 == 1 {
		want = loan.StatusRejected
	}
	assert.Equal(t, string(want), final.Status)

	var count int64
	require.NoError(t, e.db.Model(&decisionDomain.Decision{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// Both callers read the row before either writes, so the loser is stopped by
// the compare-and-swap rather than by the up-front version check.
func TestDecide_InterleavedReadsBothSeeSameVersion(t *testing.T) {
	row := pendingLoan(loan.StatusSubmitted)
	var mu sync.Mutex
	swap := loanmock.SwapOn(row, v2)

	var bothRead sync.WaitGroup
	bothRead.Add(2)
	loans := &loanmock.Repo{
		GetByLoanIDFn: func(context.Context, string) (*loan.Application, error) {
			mu.Lock()
			cp := *row
			mu.Unlock()
			bothRead.Done()
			bothRead.Wait()
			return &cp, nil
		},
		CompareAndSwapFn: func(ctx context.Context, id, expected string, m loan.Mutator) (*loan.Application, error) {
			mu.Lock()
			defer mu.Unlock()
			return swap(ctx, id, expected, m)
		},
	}
	f := newFixture(row)
	var createMu sync.Mutex
	create := f.decisions.CreateFn
	f.decisions.CreateFn = func(ctx context.Context, d *decisionDomain.Decision) error {
		createMu.Lock()
		defer createMu.Unlock()
		return create(ctx, d)
	}
	uc := NewUsecase(loans, f.decisions, uowmock.Passthrough(uow.Repos{Loans: loans, Decisions: f.decisions}), f.events)

	errs := make(chan error, 2)
	for _, who := range []loan.Actor{bankerA, bankerB} {
		go func(who loan.Actor) {
			_, err := uc.Decide(context.Background(), who, approve(v1, "Decided concurrently"))
			errs <- err
		}(who)
	}
	first, second := <-errs, <-errs
	if first != nil {
		first, second = second, first
	}
	require.NoError(t, first)
	require.ErrorIs(t, second, loan.ErrConcurrencyConflict)
	assert.Len(t, f.created, 1)
	assert.Equal(t, 1, f.events.Len())
}
