package kitchencost

import (
	"context"
	"strings"
	"sync"
)

type currencyPair struct {
	from string
	to   string
}

// MemoryRates is an in-process RateProvider. Only direct pairs are stored;
// inverse lookup is the converter's job.
type MemoryRates struct {
	mutex sync.RWMutex
	rates map[currencyPair]float64
}

func NewMemoryRates() *MemoryRates {
	return &MemoryRates{
		rates: make(map[currencyPair]float64),
	}
}

func (m *MemoryRates) Set(fromCurrency, toCurrency string, rate float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rates[currencyPair{from: strings.ToUpper(fromCurrency), to: strings.ToUpper(toCurrency)}] = rate
}

func (m *MemoryRates) Delete(fromCurrency, toCurrency string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rates, currencyPair{from: strings.ToUpper(fromCurrency), to: strings.ToUpper(toCurrency)})
}

func (m *MemoryRates) LookupRate(_ context.Context, from, to string) (*Rate, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	rate, ok := m.rates[currencyPair{from: strings.ToUpper(from), to: strings.ToUpper(to)}]
	if !ok {
		return nil, nil
	}
	return &Rate{From: strings.ToUpper(from), To: strings.ToUpper(to), Rate: rate}, nil
}
