package kitchencost

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ItemStore reads and writes the stock/price state of inventory items. Unknown
// items return ErrItemNotFound. WriteItem must update stock, price and currency
// together.
type ItemStore interface {
	ReadItem(ctx context.Context, itemID string) (ItemState, error)
	WriteItem(ctx context.Context, itemID string, state ItemState) error
}

// ItemUpdater is implemented by stores that can run a read-modify-write of one
// item atomically, e.g. inside a locked database transaction. The ledger uses
// it instead of its Locker when available.
type ItemUpdater interface {
	UpdateItem(ctx context.Context, itemID string, fn func(ItemState) (ItemState, error)) error
}

// LedgerStore appends transactions, filling in ID and CreatedAt when empty.
// The ledger appends after the item write; when the append fails the item's
// previous state is written back.
type LedgerStore interface {
	AppendTransaction(ctx context.Context, tx InventoryTransaction) (*InventoryTransaction, error)
}

// LedgerReader returns an item's transactions in creation order.
type LedgerReader interface {
	Transactions(ctx context.Context, itemID string) ([]InventoryTransaction, error)
}

type LogRequest struct {
	ItemID      string          `validate:"required"`
	Type        TransactionType `validate:"required,oneof=purchase usage waste adjustment"`
	Quantity    float64
	CostPerUnit *float64 `validate:"omitempty,gte=0"`
	Currency    string   `validate:"omitempty,len=3"`
	Reference   string
	Notes       string
}

type Ledger struct {
	items    ItemStore
	ledger   LedgerStore
	locker   Locker
	validate *validator.Validate
	logger   logrus.FieldLogger
	now      func() time.Time
}

type LedgerOption func(*Ledger)

func WithLocker(locker Locker) LedgerOption {
	return func(l *Ledger) { l.locker = locker }
}

func WithLedgerLogger(logger logrus.FieldLogger) LedgerOption {
	return func(l *Ledger) { l.logger = logger }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(items ItemStore, ledger LedgerStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		items:    items,
		ledger:   ledger,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.locker == nil {
		l.locker = NewLocalLocker()
	}
	l.logger = loggerOrDiscard(l.logger)
	return l
}

// LogTransaction applies one stock transaction to its item and appends it to
// the ledger. Stock is allowed to go negative.
func (l *Ledger) LogTransaction(ctx context.Context, req LogRequest) (*InventoryTransaction, error) {
	if err := l.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}

	var prev, next ItemState
	update := func(cur ItemState) (ItemState, error) {
		prev = cur
		next = ApplyTransaction(cur, req)
		return next, nil
	}

	var (
		tx  *InventoryTransaction
		err error
	)
	if updater, ok := l.items.(ItemUpdater); ok {
		if err := updater.UpdateItem(ctx, req.ItemID, update); err != nil {
			return nil, err
		}
		if tx, err = l.append(ctx, req); err != nil {
			l.restore(ctx, req.ItemID, err, func() error {
				return updater.UpdateItem(ctx, req.ItemID, func(cur ItemState) (ItemState, error) {
					if cur != next {
						return cur, errItemChanged
					}
					return prev, nil
				})
			})
			return nil, err
		}
	} else {
		unlock, err := l.locker.Lock(ctx, req.ItemID)
		if err != nil {
			return nil, err
		}
		defer unlock()
		cur, err := l.items.ReadItem(ctx, req.ItemID)
		if err != nil {
			return nil, err
		}
		next, _ = update(cur)
		if err := l.items.WriteItem(ctx, req.ItemID, next); err != nil {
			return nil, err
		}
		if tx, err = l.append(ctx, req); err != nil {
			l.restore(ctx, req.ItemID, err, func() error {
				return l.items.WriteItem(ctx, req.ItemID, prev)
			})
			return nil, err
		}
	}

	fields := logrus.Fields{
		"item_id":  req.ItemID,
		"type":     req.Type,
		"quantity": req.Quantity,
		"stock":    next.Stock,
		"price":    next.Price,
	}
	l.logger.WithFields(fields).Debug("inventory transaction logged")
	if next.Stock < next.MinStockLevel || next.Stock < 0 {
		l.logger.WithFields(fields).Warn("inventory item below minimum stock level")
	}
	return tx, nil
}

var errItemChanged = errors.New("item changed since the failed append")

func (l *Ledger) append(ctx context.Context, req LogRequest) (*InventoryTransaction, error) {
	return l.ledger.AppendTransaction(ctx, InventoryTransaction{
		ItemID:      req.ItemID,
		Type:        req.Type,
		Quantity:    req.Quantity,
		CostPerUnit: req.CostPerUnit,
		Currency:    req.Currency,
		Reference:   req.Reference,
		Notes:       req.Notes,
		CreatedAt:   l.now(),
	})
}

// restore puts back the item state written before a failed append.
func (l *Ledger) restore(ctx context.Context, itemID string, appendErr error, undo func() error) {
	if err := undo(); err != nil {
		l.logger.WithFields(logrus.Fields{
			"item_id":      itemID,
			"append_error": appendErr.Error(),
		}).WithError(err).Error("item state not restored after failed ledger append")
	}
}

// ApplyTransaction computes an item's state after req.
func ApplyTransaction(cur ItemState, req LogRequest) ItemState {
	next := cur
	if req.Type == TransactionAdjustment {
		next.Stock = req.Quantity
		return next
	}
	delta, ok := req.Type.Delta(req.Quantity)
	if !ok {
		return next
	}
	next.Stock = cur.Stock + delta
	if req.Type == TransactionPurchase && req.CostPerUnit != nil && req.Currency != "" {
		next.Price = purchasePrice(cur.Stock, cur.Price, math.Abs(req.Quantity), *req.CostPerUnit, next.Stock)
		next.Currency = req.Currency
	}
	return next
}

// purchasePrice is the weighted average unit cost after a purchase, rounded to
// cents. With no positive stock afterwards the purchase price is taken as is.
func purchasePrice(oldStock, oldPrice, quantity, costPerUnit, newStock float64) float64 {
	if newStock <= 0 {
		return round2(costPerUnit)
	}
	value := decimal.NewFromFloat(oldStock).Mul(decimal.NewFromFloat(oldPrice)).
		Add(decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(costPerUnit)))
	return value.Div(decimal.NewFromFloat(newStock)).Round(MoneyPrecision).InexactFloat64()
}

// History returns the item's transactions when the ledger store can list them.
func (l *Ledger) History(ctx context.Context, itemID string) ([]InventoryTransaction, error) {
	reader, ok := l.ledger.(LedgerReader)
	if !ok {
		return nil, fmt.Errorf("ledger store %T cannot list transactions", l.ledger)
	}
	return reader.Transactions(ctx, itemID)
}
