package cache

import (
	"reflect"
	"time"

	"github.com/ausimian/madness/internal/wire"
)

// entry is one (rdata, original_ttl, expires_at) tuple held for a key. The
// cache never stores two entries with equal rdata under the same key; a
// fresh record with matching rdata replaces the old tuple in place so its
// expiry resets without disturbing any others.
type entry struct {
	rdata     wire.Rdata
	ttl       uint32
	expiresAt time.Time
}

// fresh reports whether e should still be offered as a known answer at
// now, per the mDNS half-life rule: only records in the first half of
// their lifetime count as "known".
func (e *entry) fresh(now time.Time) bool {
	return e.expiresAt.Sub(now) > time.Duration(e.ttl)*time.Second/2
}

// recordSet holds every entry currently cached under one key. Lookup by
// rdata uses reflect.DeepEqual because Rdata's TXT and NSEC.Types fields
// are slices and so the struct isn't comparable with ==; sets are small
// (a handful of records per name/type pair) so a linear scan is cheap.
type recordSet []*entry

func (s recordSet) indexOf(rdata wire.Rdata) int {
	for i, e := range s {
		if reflect.DeepEqual(e.rdata, rdata) {
			return i
		}
	}
	return -1
}

// upsert inserts or refreshes the tuple for rdata, returning the updated set.
func (s recordSet) upsert(rdata wire.Rdata, ttl uint32, now time.Time) recordSet {
	e := &entry{rdata: rdata, ttl: ttl, expiresAt: now.Add(time.Duration(ttl) * time.Second)}
	if i := s.indexOf(rdata); i >= 0 {
		s[i] = e
		return s
	}
	return append(s, e)
}

// removeRdata drops the tuple matching rdata, if present, returning the
// updated set.
func (s recordSet) removeRdata(rdata wire.Rdata) recordSet {
	i := s.indexOf(rdata)
	if i < 0 {
		return s
	}
	return append(s[:i], s[i+1:]...)
}

// knownTypes lists the record types the cache understands and tracks; any
// other numeric type arriving in a message is dropped silently during
// ingestion.
var knownTypes = map[wire.TypeCode]bool{
	wire.TypeA:     true,
	wire.TypeAAAA:  true,
	wire.TypeCNAME: true,
	wire.TypeNS:    true,
	wire.TypePTR:   true,
	wire.TypeSRV:   true,
	wire.TypeTXT:   true,
	wire.TypeNSEC:  true,
}
