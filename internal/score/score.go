// Package score computes the points awarded for an answer.
package score

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/quizroom/internal/errors"
)

var (
	DefaultBase        = decimal.NewFromInt(500)
	DefaultSpeedWindow = decimal.NewFromInt(500)
)

type Config struct {
	// Base is awarded for every correct answer.
	Base decimal.Decimal
	// SpeedWindow is the bonus for an instant answer; it shrinks by one point
	// per time unit taken and never goes below zero.
	SpeedWindow decimal.Decimal
}

type Rule struct {
	base   decimal.Decimal
	window decimal.Decimal
}

func NewRule(c Config) Rule {
	r := Rule{base: c.Base, window: c.SpeedWindow}
	if r.base.IsZero() {
		r.base = DefaultBase
	}
	if r.window.IsZero() {
		r.window = DefaultSpeedWindow
	}

	return r
}

// Award returns the points for an answer: base + max(0, window - timeTaken)
// when correct, zero otherwise.
func (r Rule) Award(correct bool, timeTaken decimal.Decimal) (decimal.Decimal, error) {
	if timeTaken.IsNegative() {
		return decimal.Zero, errors.InvalidInput("time taken must not be negative: %s", timeTaken)
	}

	if !correct {
		return decimal.Zero, nil
	}

	bonus := decimal.Max(decimal.Zero, r.window.Sub(timeTaken))
	return r.base.Add(bonus), nil
}

// Max is the most points a single answer can earn.
func (r Rule) Max() decimal.Decimal {
	return r.base.Add(r.window)
}
