package cache

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/internal/wire"
)

func newTestCache(t *testing.T) (*Cache, *clock.Mock) {
	mock := clock.NewMock()
	c := New(mock, nil)
	t.Cleanup(c.Close)
	return c, mock
}

func aRecord(name string, ttl uint32, flush bool, octet byte) wire.ResourceRecord {
	return wire.ResourceRecord{
		Name:       name,
		Type:       wire.TypeA,
		Class:      wire.ClassIN,
		CacheFlush: flush,
		TTL:        ttl,
		Rdata:      wire.Rdata{A: [4]byte{10, 0, 0, octet}},
	}
}

func TestCache_TTLHalfRule(t *testing.T) {
	c, mock := newTestCache(t)
	ctx := context.Background()

	rec := aRecord("host.local", 100, false, 1)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{rec}}, netx.FamilyIPv4, 1))

	q := []wire.Question{{Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN}}

	// At t0, well within the first half of the 100s TTL.
	got, err := c.Lookup(ctx, q, netx.FamilyIPv4, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Just before the half-life: still fresh.
	mock.Add(49 * time.Second)
	got, err = c.Lookup(ctx, q, netx.FamilyIPv4, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Past the half-life: no longer offered as known.
	mock.Add(2 * time.Second)
	got, err = c.Lookup(ctx, q, netx.FamilyIPv4, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCache_CacheFlush(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	old := aRecord("host.local", 100, false, 1)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{old}}, netx.FamilyIPv4, 1))

	unrelated := aRecord("other.local", 100, false, 9)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{unrelated}}, netx.FamilyIPv4, 1))

	flushing := aRecord("host.local", 100, true, 2)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{flushing}}, netx.FamilyIPv4, 1))

	got, err := c.Lookup(ctx, []wire.Question{{Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN}}, netx.FamilyIPv4, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, flushing.Rdata, got[0].Rdata)

	gotOther, err := c.Lookup(ctx, []wire.Question{{Name: "other.local", Type: wire.TypeA, Class: wire.ClassIN}}, netx.FamilyIPv4, 1)
	require.NoError(t, err)
	assert.Len(t, gotOther, 1)
}

func TestCache_Goodbye(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	rec1 := aRecord("host.local", 100, false, 1)
	rec2 := aRecord("host.local", 100, false, 2)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{rec1, rec2}}, netx.FamilyIPv4, 1))

	goodbye := aRecord("host.local", 0, false, 1)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{goodbye}}, netx.FamilyIPv4, 1))

	got, err := c.Lookup(ctx, []wire.Question{{Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN}}, netx.FamilyIPv4, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec2.Rdata, got[0].Rdata)
}

func TestCache_KeyScopedByFamilyAndInterface(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	rec := aRecord("host.local", 100, false, 1)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{rec}}, netx.FamilyIPv4, 1))

	q := []wire.Question{{Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN}}

	gotSameScope, err := c.Lookup(ctx, q, netx.FamilyIPv4, 1)
	require.NoError(t, err)
	assert.Len(t, gotSameScope, 1)

	gotOtherIface, err := c.Lookup(ctx, q, netx.FamilyIPv4, 2)
	require.NoError(t, err)
	assert.Empty(t, gotOtherIface)

	gotOtherFamily, err := c.Lookup(ctx, q, netx.FamilyIPv6, 1)
	require.NoError(t, err)
	assert.Empty(t, gotOtherFamily)
}

func TestCache_WithdrawInterface(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	rec := aRecord("host.local", 100, false, 1)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{rec}}, netx.FamilyIPv4, 1))
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{rec}}, netx.FamilyIPv4, 2))

	require.NoError(t, c.WithdrawInterface(ctx, netx.FamilyIPv4, 1))

	q := []wire.Question{{Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN}}
	gotWithdrawn, err := c.Lookup(ctx, q, netx.FamilyIPv4, 1)
	require.NoError(t, err)
	assert.Empty(t, gotWithdrawn)

	gotRemaining, err := c.Lookup(ctx, q, netx.FamilyIPv4, 2)
	require.NoError(t, err)
	assert.Len(t, gotRemaining, 1)
}

func TestCache_WildcardLookupMatchesAnyInterfaceAndFamily(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	onEth0 := aRecord("host.local", 100, false, 1)
	onEth1 := aRecord("host.local", 100, false, 2)
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{onEth0}}, netx.FamilyIPv4, 1))
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{onEth1}}, netx.FamilyIPv6, 2))

	q := []wire.Question{{Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN}}

	got, err := c.Lookup(ctx, q, netx.FamilyAny, -1)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	scoped, err := c.Lookup(ctx, q, netx.FamilyIPv4, -1)
	require.NoError(t, err)
	assert.Len(t, scoped, 1)
}

func TestCache_RelatedQuestionExpansion(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ptr := wire.ResourceRecord{
		Name: "_http._tcp.local", Type: wire.TypePTR, Class: wire.ClassIN, TTL: 120,
		Rdata: wire.Rdata{Name: "inst._http._tcp.local"},
	}
	srv := wire.ResourceRecord{
		Name: "inst._http._tcp.local", Type: wire.TypeSRV, Class: wire.ClassIN, TTL: 120,
		Rdata: wire.Rdata{SRV: wire.SRVData{Port: 8080, Target: "host.local"}},
	}
	txt := wire.ResourceRecord{
		Name: "inst._http._tcp.local", Type: wire.TypeTXT, Class: wire.ClassIN, TTL: 120,
		Rdata: wire.Rdata{TXT: [][]byte{[]byte("path=/")}},
	}
	a := wire.ResourceRecord{
		Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN, TTL: 120,
		Rdata: wire.Rdata{A: [4]byte{192, 168, 1, 50}},
	}

	msg := wire.Message{Answers: []wire.ResourceRecord{ptr, srv, txt, a}}
	require.NoError(t, c.Ingest(ctx, msg, netx.FamilyIPv4, 1))

	got, err := c.Lookup(ctx, []wire.Question{{Name: "_http._tcp.local", Type: wire.TypePTR, Class: wire.ClassIN}}, netx.FamilyIPv4, 1)
	require.NoError(t, err)

	byType := map[wire.TypeCode]int{}
	for _, r := range got {
		byType[r.Type]++
	}
	assert.Equal(t, 1, byType[wire.TypePTR])
	assert.Equal(t, 1, byType[wire.TypeSRV])
	assert.Equal(t, 1, byType[wire.TypeTXT])
	assert.Equal(t, 1, byType[wire.TypeA])
}

func TestCache_UnknownTypeDroppedOnIngest(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	r := wire.ResourceRecord{Name: "host.local", Type: wire.TypeFromInt(9999), Class: wire.ClassIN, TTL: 100, Rdata: wire.Rdata{Unknown: []byte{1}}}
	require.NoError(t, c.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{r}}, netx.FamilyIPv4, 1))

	n, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
