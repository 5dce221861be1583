package ospf

import (
	"time"

	"github.com/davidbalbert/miniospf/common"
)

// lsdb holds the LSAs this router originates. There are few of them (one
// per type), so a slice is enough.
type lsdb struct {
	version Version
	lsas    []*LSA
}

func newLSDB(v Version) *lsdb {
	return &lsdb{version: v}
}

// locate finds an LSA by type and link state ID. There is only ever one
// Link LSA, so it is found by type alone.
func (db *lsdb) locate(t lsType, id uint32) *LSA {
	for _, l := range db.lsas {
		if l.lsType != t {
			continue
		}

		if t == lsTypeLink || l.id == id {
			return l
		}
	}

	return nil
}

// match finds the LSA identified by k, advertising router included.
func (db *lsdb) match(k lsaKey) *LSA {
	l := db.locate(k.lsType, k.id)
	if l == nil || l.key() != k {
		return nil
	}

	return l
}

// originate installs a new LSA with the initial sequence number.
func (db *lsdb) originate(t lsType, id uint32, advRouter common.RouterID, options uint8, body lsaBody, now time.Time) *LSA {
	l := &LSA{
		lsaHeader: lsaHeader{
			age:       initialAge,
			options:   options,
			lsType:    t,
			id:        id,
			advRouter: advRouter,
			seq:       initialSequenceNumber,
		},
		stamp: now,
		body:  body,
	}
	l.finish(db.version)

	db.lsas = append(db.lsas, l)
	return l
}

func (db *lsdb) remove(l *LSA) {
	for k, other := range db.lsas {
		if other == l {
			db.lsas = append(db.lsas[:k], db.lsas[k+1:]...)
			return
		}
	}
}

// refresh reoriginates l with a sequence number one past seq and restarts
// its age. The sequence number stops at maxSequenceNumber.
func (db *lsdb) refresh(l *LSA, seq int32, now time.Time) {
	l.seq = max(seq, l.seq)
	if l.seq < maxSequenceNumber {
		l.seq++
	}
	l.age = initialAge
	l.stamp = now
	l.finish(db.version)
}

// rewrite replaces the body of l and refreshes it, unless body is the same
// as what l already carries. It reports whether anything changed.
func (db *lsdb) rewrite(l *LSA, body lsaBody, now time.Time) bool {
	if l.body.equal(body) {
		return false
	}

	l.body = body
	db.refresh(l, l.seq, now)
	return true
}

// expire pins the age of l at MaxAge so that neighbors flush it.
func (db *lsdb) expire(l *LSA, now time.Time) {
	if l.maxAged(now) {
		return
	}

	l.age = maxAge
	l.stamp = now
}

func (db *lsdb) needsFlooding() bool {
	for _, l := range db.lsas {
		if l.needsFlooding {
			return true
		}
	}
	return false
}

func (db *lsdb) headers(now time.Time) []lsaHeader {
	hs := make([]lsaHeader, 0, len(db.lsas))
	for _, l := range db.lsas {
		hs = append(hs, l.header(now))
	}
	return hs
}
