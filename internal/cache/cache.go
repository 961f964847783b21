// Package cache implements the single-owner record store that sits
// between the wire codec and the interface workers: it tracks every
// resource record learned from the network, keyed by name/type/class plus
// the interface and address family it arrived on, and answers lookups
// with only the records still fresh enough to count as "known" under the
// mDNS half-life rule.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/internal/wire"
	"github.com/ausimian/madness/pkg/lib/log"
	"github.com/ausimian/madness/pkg/metrics"
)

var logger = log.Logger("cache")

// sweepInterval bounds how long a fully-expired key can linger between
// lookups before the background sweep reclaims it. It is a memory-bounding
// supplement only: correctness never depends on the sweep running, since
// every lookup re-checks freshness itself.
const sweepInterval = 10 * time.Second

// Cache is a single-owner actor: every mutation and every read is
// serialized through the one goroutine started by New, via the requests
// channel. Callers never touch the underlying map directly.
type Cache struct {
	clock    clock.Clock
	requests chan any
	done     chan struct{}
	metrics  *metrics.Collector
}

// New starts a Cache's owning goroutine and returns a handle to it. clk
// lets tests run TTL expiry deterministically; production callers pass
// clock.New(). m may be nil, in which case no metrics are recorded.
func New(clk clock.Clock, m *metrics.Collector) *Cache {
	c := &Cache{
		clock:    clk,
		requests: make(chan any),
		done:     make(chan struct{}),
		metrics:  m,
	}
	go c.run()
	return c
}

// Close stops the owning goroutine. Requests made after Close return
// errClosed instead of blocking; Close itself must be called only once.
func (c *Cache) Close() {
	close(c.done)
}

type lookupRequest struct {
	questions []wire.Question
	family    netx.Family
	ifidx     int
	resp      chan []wire.ResourceRecord
}

type ingestRequest struct {
	msg    wire.Message
	family netx.Family
	ifidx  int
	resp   chan struct{}
}

type withdrawRequest struct {
	family netx.Family
	ifidx  int
	resp   chan struct{}
}

type snapshotRequest struct {
	resp chan int
}

// Lookup returns the currently-fresh records matching any of questions on
// (family, ifidx), including related-question expansion (PTR -> SRV ->
// TXT/A/AAAA). ifidx < 0 matches records learned on any interface whose
// family matches family (netx.FamilyAny then matches either address
// family), giving a network-wide view across everywhere a query ran. With
// ifidx >= 0 the lookup is scoped to exactly (family, ifidx).
func (c *Cache) Lookup(ctx context.Context, questions []wire.Question, family netx.Family, ifidx int) ([]wire.ResourceRecord, error) {
	req := lookupRequest{questions: questions, family: family, ifidx: ifidx, resp: make(chan []wire.ResourceRecord, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errClosed
	}
	select {
	case r := <-req.resp:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ingest records every understood answer/authority/additional in msg
// under (family, ifidx), applying cache-flush and goodbye semantics.
func (c *Cache) Ingest(ctx context.Context, msg wire.Message, family netx.Family, ifidx int) error {
	req := ingestRequest{msg: msg, family: family, ifidx: ifidx, resp: make(chan struct{})}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errClosed
	}
	select {
	case <-req.resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithdrawInterface drops every key scoped to (family, ifidx), for use
// when the event source reports the interface going down or losing its
// address of that family.
func (c *Cache) WithdrawInterface(ctx context.Context, family netx.Family, ifidx int) error {
	req := withdrawRequest{family: family, ifidx: ifidx, resp: make(chan struct{})}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errClosed
	}
	select {
	case <-req.resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size returns the number of distinct keys currently held, for metrics.
func (c *Cache) Size(ctx context.Context) (int, error) {
	req := snapshotRequest{resp: make(chan int, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.done:
		return 0, errClosed
	}
	select {
	case n := <-req.resp:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Cache) run() {
	table := make(map[key]recordSet)
	ticker := c.clock.Ticker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case <-ticker.C:
			now := c.clock.Now()
			evicted := 0
			for k, set := range table {
				kept := set[:0]
				for _, e := range set {
					if e.expiresAt.After(now) {
						kept = append(kept, e)
					} else {
						evicted++
					}
				}
				if len(kept) == 0 {
					delete(table, k)
				} else {
					table[k] = kept
				}
			}
			c.metrics.ObserveCacheEviction(evicted)
			c.metrics.SetCacheSize(recordCount(table))

		case req := <-c.requests:
			switch r := req.(type) {
			case lookupRequest:
				r.resp <- c.lookup(table, r.questions, r.family, r.ifidx)
			case ingestRequest:
				c.ingest(table, r.msg, r.family, r.ifidx)
				close(r.resp)
				c.metrics.SetCacheSize(recordCount(table))
			case withdrawRequest:
				c.withdraw(table, r.family, r.ifidx)
				close(r.resp)
				c.metrics.SetCacheSize(recordCount(table))
			case snapshotRequest:
				r.resp <- len(table)
			}
		}
	}
}

// recordCount returns the number of entries held across every key, for
// the cache-size metric.
func recordCount(table map[key]recordSet) int {
	n := 0
	for _, set := range table {
		n += len(set)
	}
	return n
}

func (c *Cache) ingest(table map[key]recordSet, msg wire.Message, family netx.Family, ifidx int) {
	now := c.clock.Now()
	for _, section := range [][]wire.ResourceRecord{msg.Answers, msg.Authorities, msg.Additionals} {
		for _, r := range section {
			if !knownTypes[r.Type] {
				continue
			}
			k := keyForRecord(r, family, ifidx)
			set := table[k]

			if r.CacheFlush {
				set = nil
			}
			if r.TTL == 0 {
				set = set.removeRdata(r.Rdata)
			} else {
				set = set.upsert(r.Rdata, r.TTL, now)
			}

			if len(set) == 0 {
				delete(table, k)
			} else {
				table[k] = set
			}
		}
	}
}

func (c *Cache) withdraw(table map[key]recordSet, family netx.Family, ifidx int) {
	for k := range table {
		if k.family == family && k.ifidx == ifidx {
			delete(table, k)
		}
	}
}

func (c *Cache) lookup(table map[key]recordSet, questions []wire.Question, family netx.Family, ifidx int) []wire.ResourceRecord {
	now := c.clock.Now()
	visited := make(map[wire.Question]bool)
	worklist := append([]wire.Question(nil), questions...)
	var out []wire.ResourceRecord

	for len(worklist) > 0 {
		q := worklist[0]
		worklist = worklist[1:]
		if visited[q] {
			continue
		}
		visited[q] = true

		for _, e := range c.matchingEntries(table, q, family, ifidx) {
			if !e.fresh(now) {
				continue
			}
			rr := wire.ResourceRecord{
				Name:  q.Name,
				Type:  q.Type,
				Class: q.Class,
				TTL:   remainingTTL(e, now),
				Rdata: e.rdata,
			}
			out = append(out, rr)

			for _, follow := range relatedQuestions(rr) {
				if !visited[follow] {
					worklist = append(worklist, follow)
				}
			}
		}
	}
	return out
}

// matchingEntries returns the entries satisfying q under the given
// (family, ifidx) scope. ifidx < 0 scans every key instead of indexing a
// single one, so Lookup can answer "what do we know anywhere" queries.
func (c *Cache) matchingEntries(table map[key]recordSet, q wire.Question, family netx.Family, ifidx int) recordSet {
	if ifidx >= 0 {
		return table[keyForQuestion(q, family, ifidx)]
	}

	name := strings.ToLower(q.Name)
	var merged recordSet
	for k, set := range table {
		if k.name == name && k.typ == q.Type && k.class == q.Class && k.family.Matches(family) {
			merged = append(merged, set...)
		}
	}
	return merged
}

// remainingTTL returns how many seconds of e's lifetime are left, for use
// as the TTL on a record handed back from a lookup (as opposed to the
// original TTL it was ingested with).
func remainingTTL(e *entry, now time.Time) uint32 {
	remaining := e.expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return uint32(remaining / time.Second)
}

// relatedQuestions implements the PTR -> SRV -> (TXT, A/AAAA) expansion:
// given a record just returned from a lookup, what additional questions
// should also be asked against the same (family, ifidx) scope.
func relatedQuestions(rr wire.ResourceRecord) []wire.Question {
	switch rr.Type {
	case wire.TypePTR:
		return []wire.Question{{Name: rr.Rdata.Name, Type: wire.TypeSRV, Class: rr.Class}}
	case wire.TypeSRV:
		return []wire.Question{
			{Name: rr.Name, Type: wire.TypeTXT, Class: rr.Class},
			{Name: rr.Rdata.SRV.Target, Type: wire.TypeA, Class: rr.Class},
			{Name: rr.Rdata.SRV.Target, Type: wire.TypeAAAA, Class: rr.Class},
		}
	default:
		return nil
	}
}
