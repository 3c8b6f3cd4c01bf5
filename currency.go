package kitchencost

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Rate is a stored exchange rate: 1 From = Rate To.
type Rate struct {
	From string
	To   string
	Rate float64
}

// RateProvider looks up a direct exchange rate. A missing pair is (nil, nil).
type RateProvider interface {
	LookupRate(ctx context.Context, from, to string) (*Rate, error)
}

// ConversionResult carries the outcome of a currency conversion. Rate is nil and
// Error is set when no usable rate was found; Converted is then the input amount.
type ConversionResult struct {
	Converted float64
	Rate      *float64
	Error     string
}

func (r ConversionResult) OK() bool {
	return r.Error == ""
}

type CurrencyConverter struct {
	rates  RateProvider
	logger logrus.FieldLogger
}

func NewCurrencyConverter(rates RateProvider, logger logrus.FieldLogger) *CurrencyConverter {
	return &CurrencyConverter{
		rates:  rates,
		logger: loggerOrDiscard(logger),
	}
}

// Convert never fails: missing rates and provider errors degrade to returning
// the amount unchanged with Error set.
func (cc *CurrencyConverter) Convert(ctx context.Context, amount float64, fromCurrency, toCurrency string) ConversionResult {
	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	to := strings.ToUpper(strings.TrimSpace(toCurrency))
	if from == to {
		one := 1.0
		return ConversionResult{Converted: amount, Rate: &one}
	}

	direct, err := cc.rates.LookupRate(ctx, from, to)
	if err != nil {
		return cc.degrade(amount, from, to, fmt.Sprintf("Exchange rate lookup failed for %s → %s: %v", from, to, err))
	}
	if direct != nil {
		rate := direct.Rate
		return ConversionResult{Converted: amount * rate, Rate: &rate}
	}

	inverse, err := cc.rates.LookupRate(ctx, to, from)
	if err != nil {
		return cc.degrade(amount, from, to, fmt.Sprintf("Exchange rate lookup failed for %s → %s: %v", from, to, err))
	}
	if inverse != nil && inverse.Rate != 0 {
		rate := 1 / inverse.Rate
		return ConversionResult{Converted: amount * rate, Rate: &rate}
	}

	return cc.degrade(amount, from, to, fmt.Sprintf("No exchange rate found for %s → %s", from, to))
}

func (cc *CurrencyConverter) degrade(amount float64, from, to, msg string) ConversionResult {
	cc.logger.WithFields(logrus.Fields{
		"from":   from,
		"to":     to,
		"amount": amount,
	}).Warn(msg)
	return ConversionResult{Converted: amount, Error: msg}
}

// ConvertMoney is Convert for a Money value. The returned Money carries
// toCurrency only when the conversion succeeded.
func (cc *CurrencyConverter) ConvertMoney(ctx context.Context, m Money, toCurrency string) (Money, ConversionResult) {
	res := cc.Convert(ctx, m.Amount, m.Currency, toCurrency)
	if !res.OK() {
		return Money{Amount: res.Converted, Currency: m.Currency}, res
	}
	return Money{Amount: res.Converted, Currency: strings.ToUpper(toCurrency)}, res
}
