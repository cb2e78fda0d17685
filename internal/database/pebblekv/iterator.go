package pebblekv

import (
	"bytes"

	"github.com/cockroachdb/pebble"

	"github.com/fedkv/sqlevel/pkg/kv"
)

// iterator walks a bounded window of the shared pebble database, stripping
// the store prefix from every key it yields.
type iterator struct {
	iter    *pebble.Iterator
	prefix  []byte
	reverse bool
	limit   int
	yielded int

	started bool
	closed  bool
	pending []byte
	key     []byte
	value   []byte
}

var _ kv.Iterator = (*iterator)(nil)

func newIterator(db *pebble.DB, prefix []byte, opts kv.IterOptions) (*iterator, error) {
	lower := append([]byte(nil), prefix...)
	upper := prefixEnd(prefix)

	if opts.GTE != nil {
		lower = concat(prefix, opts.GTE)
	}
	if opts.GT != nil {
		b := append(concat(prefix, opts.GT), 0x00)
		if bytes.Compare(b, lower) > 0 {
			lower = b
		}
	}
	if opts.LTE != nil {
		b := append(concat(prefix, opts.LTE), 0x00)
		if upper == nil || bytes.Compare(b, upper) < 0 {
			upper = b
		}
	}
	if opts.LT != nil {
		b := concat(prefix, opts.LT)
		if upper == nil || bytes.Compare(b, upper) < 0 {
			upper = b
		}
	}

	it, err := db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}

	return &iterator{
		iter:    it,
		prefix:  prefix,
		reverse: opts.Reverse,
		limit:   opts.Limit,
	}, nil
}

func (it *iterator) Next() bool {
	if it.closed {
		return false
	}
	if it.limit > 0 && it.yielded >= it.limit {
		return false
	}

	var valid bool
	switch {
	case it.pending != nil:
		abs := concat(it.prefix, it.pending)
		if it.reverse {
			// Largest entry at or below the target.
			valid = it.iter.SeekLT(append(abs, 0x00))
		} else {
			valid = it.iter.SeekGE(abs)
		}
		it.pending = nil
		it.started = true
	case !it.started:
		it.started = true
		if it.reverse {
			valid = it.iter.Last()
		} else {
			valid = it.iter.First()
		}
	case it.reverse:
		valid = it.iter.Prev()
	default:
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}

	// Pebble reuses its key and value buffers across positioning calls.
	it.key = append([]byte(nil), it.iter.Key()[len(it.prefix):]...)
	it.value = append([]byte(nil), it.iter.Value()...)
	it.yielded++
	return true
}

func (it *iterator) Key() []byte   { return it.key }
func (it *iterator) Value() []byte { return it.value }

// Seek schedules a reposition to target, applied on the next advance. It only
// ever moves forward in iteration order; a target behind the current entry or
// behind an earlier seek is ignored.
func (it *iterator) Seek(target []byte) {
	if it.closed {
		return
	}
	if !it.ahead(target, it.pending) || (it.started && !it.ahead(target, it.key)) {
		return
	}
	it.pending = append([]byte(nil), target...)
}

// ahead reports whether target lies strictly past ref in iteration order.
// A nil ref never constrains.
func (it *iterator) ahead(target, ref []byte) bool {
	if ref == nil {
		return true
	}
	if it.reverse {
		return bytes.Compare(target, ref) < 0
	}
	return bytes.Compare(target, ref) > 0
}

func (it *iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.iter.Close()
}
