// Package pricing computes the terms offered for a loan application: the
// amortized monthly payment, total interest, debt-to-income ratio, risk tier
// and interest rate. Every function is pure; the same inputs always produce
// the same terms.
package pricing

import (
	"github.com/shopspring/decimal"
)

type RiskTier string

const (
	TierLow    RiskTier = "Low"
	TierMedium RiskTier = "Medium"
	TierHigh   RiskTier = "High"
)

// workPrecision is the number of decimal places kept for intermediate values
// (monthly rate, compound factor) before the final 2-place rounding.
const workPrecision = 28

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	months  = decimal.NewFromInt(1200) // percent -> fraction, annual -> monthly

	lowCeiling    = decimal.NewFromInt(20)
	mediumCeiling = decimal.NewFromInt(43)

	// SeedRate prices the provisional first pass before the tier is known.
	SeedRate = decimal.RequireFromString("8.5")

	baseRates = map[RiskTier]decimal.Decimal{
		TierLow:    decimal.RequireFromString("4.5"),
		TierMedium: decimal.RequireFromString("8.5"),
		TierHigh:   decimal.RequireFromString("12.5"),
	}
	unknownTierRate = decimal.RequireFromString("10.0")

	discountPerYear = decimal.RequireFromString("0.5")
	maxDiscount     = decimal.RequireFromString("2.0")
	minRate         = decimal.RequireFromString("3.0")

	frontEndRatio = decimal.RequireFromString("0.28")
)

// AmortizedPayment returns the fixed monthly payment M = P·r(1+r)^n / ((1+r)^n − 1)
// with r = annualRatePercent/100/12, rounded half away from zero to cents.
// A non-positive rate splits the principal linearly; a non-positive principal
// or term yields zero.
func AmortizedPayment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	if principal.Sign() <= 0 || termMonths <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(termMonths))
	if annualRatePercent.Sign() <= 0 {
		return principal.DivRound(n, workPrecision).Round(2)
	}

	r := annualRatePercent.DivRound(months, workPrecision)
	factor := compound(one.Add(r), termMonths)
	payment := principal.Mul(r).Mul(factor).DivRound(factor.Sub(one), workPrecision)
	return payment.Round(2)
}

// compound raises base to the n-th power by squaring, keeping workPrecision
// places at every step.
func compound(base decimal.Decimal, n int) decimal.Decimal {
	result := one
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Round(workPrecision)
		}
		base = base.Mul(base).Round(workPrecision)
		n >>= 1
	}
	return result
}

// TotalInterest is payment*termMonths - principal, floored at zero.
func TotalInterest(payment decimal.Decimal, termMonths int, principal decimal.Decimal) decimal.Decimal {
	total := payment.Mul(decimal.NewFromInt(int64(termMonths))).Sub(principal)
	if total.Sign() < 0 {
		return decimal.Zero
	}
	return total.Round(2)
}

// TotalCost is everything the applicant pays back over the term.
func TotalCost(payment decimal.Decimal, termMonths int) decimal.Decimal {
	return payment.Mul(decimal.NewFromInt(int64(termMonths))).Round(2)
}

// DebtToIncomeRatio expresses the monthly payment as a percentage of monthly
// income, rounded to 2 places. Non-positive income is the worst case (100),
// not an error.
func DebtToIncomeRatio(payment, monthlyIncome decimal.Decimal) decimal.Decimal {
	if monthlyIncome.Sign() <= 0 {
		return hundred
	}
	return payment.DivRound(monthlyIncome, workPrecision).Mul(hundred).Round(2)
}

// RiskTierFor buckets a DTI: below 20 is Low, 20 through 43 inclusive is
// Medium, above 43 is High.
func RiskTierFor(dti decimal.Decimal) RiskTier {
	switch {
	case dti.LessThan(lowCeiling):
		return TierLow
	case dti.LessThanOrEqual(mediumCeiling):
		return TierMedium
	default:
		return TierHigh
	}
}

// InterestRate returns the annual percentage rate for a tier: the tier's base
// rate minus 0.5 per year employed (at most 2.0), never below 3.0.
func InterestRate(tier RiskTier, yearsEmployed int) decimal.Decimal {
	base, ok := baseRates[tier]
	if !ok {
		base = unknownTierRate
	}
	discount := decimal.Zero
	if yearsEmployed > 0 {
		discount = decimal.Min(discountPerYear.Mul(decimal.NewFromInt(int64(yearsEmployed))), maxDiscount)
	}
	return decimal.Max(base.Sub(discount), minRate)
}

// Affordable reports whether the payment fits under the 28% front-end ratio.
func Affordable(payment, monthlyIncome decimal.Decimal) bool {
	if monthlyIncome.Sign() <= 0 {
		return false
	}
	return payment.LessThanOrEqual(monthlyIncome.Mul(frontEndRatio))
}

type Inputs struct {
	LoanAmount    decimal.Decimal
	TermMonths    int
	YearsEmployed int
	MonthlyIncome decimal.Decimal
}

type Terms struct {
	InterestRate      decimal.Decimal
	MonthlyPayment    decimal.Decimal
	TotalInterest     decimal.Decimal
	DebtToIncomeRatio decimal.Decimal
	RiskTier          RiskTier
}

// Price runs the two-pass pricing. The rate depends on the tier, the tier on
// the payment, and the payment on the rate; the first pass breaks the cycle
// with SeedRate, the second reprices with the rate derived from the
// provisional tier. The stored tier is taken from the final DTI so that it
// always agrees with the stored ratio.
func Price(in Inputs) Terms {
	provisional := AmortizedPayment(in.LoanAmount, SeedRate, in.TermMonths)
	provisionalTier := RiskTierFor(DebtToIncomeRatio(provisional, in.MonthlyIncome))

	rate := InterestRate(provisionalTier, in.YearsEmployed)
	payment := AmortizedPayment(in.LoanAmount, rate, in.TermMonths)
	dti := DebtToIncomeRatio(payment, in.MonthlyIncome)

	return Terms{
		InterestRate:      rate,
		MonthlyPayment:    payment,
		TotalInterest:     TotalInterest(payment, in.TermMonths, in.LoanAmount),
		DebtToIncomeRatio: dti,
		RiskTier:          RiskTierFor(dti),
	}
}
