package madness

import (
	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/internal/wire"
	"github.com/ausimian/madness/internal/worker"
)

// Question is one entry of a query's question section.
type Question = wire.Question

// ResourceRecord is one decoded answer/authority/additional record.
type ResourceRecord = wire.ResourceRecord

// Rdata holds the type-specific payload of a ResourceRecord.
type Rdata = wire.Rdata

// SRVData is the rdata of an SRV record.
type SRVData = wire.SRVData

// NSECData is the rdata of an NSEC record.
type NSECData = wire.NSECData

// DecodedResponse is one raw response message forwarded to a Client's
// Stream, tagged with the interface and address family it arrived on.
type DecodedResponse = worker.DecodedResponse

// Family selects which address family (or both) a query runs over.
type Family = netx.Family

const (
	FamilyAny  = netx.FamilyAny
	FamilyIPv4 = netx.FamilyIPv4
	FamilyIPv6 = netx.FamilyIPv6
)

const (
	TypeA     = wire.TypeA
	TypeNS    = wire.TypeNS
	TypeCNAME = wire.TypeCNAME
	TypePTR   = wire.TypePTR
	TypeTXT   = wire.TypeTXT
	TypeAAAA  = wire.TypeAAAA
	TypeSRV   = wire.TypeSRV
	TypeNSEC  = wire.TypeNSEC
	TypeANY   = wire.TypeANY
)

const (
	ClassIN  = wire.ClassIN
	ClassANY = wire.ClassANY
)
