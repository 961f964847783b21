package cache

import (
	"strings"

	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/internal/wire"
)

// key scopes a cache entry by the interface and address family it was
// learned on, so records seen on one network never satisfy a lookup bound
// to another.
type key struct {
	name   string
	typ    wire.TypeCode
	class  wire.ClassCode
	family netx.Family
	ifidx  int
}

func newKey(name string, typ wire.TypeCode, class wire.ClassCode, family netx.Family, ifidx int) key {
	return key{name: strings.ToLower(name), typ: typ, class: class, family: family, ifidx: ifidx}
}

func keyForRecord(r wire.ResourceRecord, family netx.Family, ifidx int) key {
	return newKey(r.Name, r.Type, r.Class, family, ifidx)
}

func keyForQuestion(q wire.Question, family netx.Family, ifidx int) key {
	return newKey(q.Name, q.Type, q.Class, family, ifidx)
}
