package costmsgpack

import (
	"bytes"
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"kitchencost"
)

func MarshalPrepSheet(sheet *kitchencost.PrepSheet) ([]byte, error) {
	s := NewPrepSheet(sheet)
	return msgpack.Marshal(&s)
}

func UnmarshalPrepSheet(data []byte) (kitchencost.PrepSheet, error) {
	var s PrepSheet
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return kitchencost.PrepSheet{}, err
	}
	return ToInvPrepSheet(&s), nil
}

// WriteTransactions encodes each transaction back to back on w.
func WriteTransactions(w io.Writer, txs []kitchencost.InventoryTransaction) error {
	enc := msgpack.NewEncoder(w)
	for i := range txs {
		t := NewTransaction(&txs[i])
		if err := enc.Encode(&t); err != nil {
			return err
		}
	}
	return nil
}

// TransactionBuffer decodes a stream of transactions that may arrive split
// across arbitrary chunk boundaries.
type TransactionBuffer struct {
	buf []byte
}

func (tb *TransactionBuffer) Feed(data []byte) ([]kitchencost.InventoryTransaction, error) {
	tb.buf = append(tb.buf, data...)

	var results []kitchencost.InventoryTransaction
	for len(tb.buf) > 0 {
		r := bytes.NewReader(tb.buf)
		dec := msgpack.NewDecoder(r)
		var t Transaction
		if err := dec.Decode(&t); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// not enough data yet, stop
				break
			}
			return results, err
		}
		tb.buf = tb.buf[len(tb.buf)-r.Len():]
		results = append(results, ToInvTransaction(&t))
	}
	return results, nil
}

// Pending is the number of buffered bytes not yet decoded.
func (tb *TransactionBuffer) Pending() int {
	return len(tb.buf)
}
