package domain

import "time"

// Payload is the variant-specific part of a Node. The set of implementations
// is closed; KindOf must be extended when a new one is added.
type Payload interface {
	payload()
}

type DataSubtype string

const (
	DataString     DataSubtype = "string"
	DataFile       DataSubtype = "file"
	DataURL        DataSubtype = "url"
	DataRelational DataSubtype = "relational"
	DataFileImage  DataSubtype = "file-image"
)

func ParseDataSubtype(s string) (DataSubtype, bool) {
	switch DataSubtype(s) {
	case DataString, DataFile, DataURL, DataRelational, DataFileImage:
		return DataSubtype(s), true
	}
	return "", false
}

// DataPayload describes a data item. Value holds the literal for strings,
// the path for files and images, the address for URLs and the query or table
// reference for relational items.
type DataPayload struct {
	Subtype DataSubtype
	Value   string
}

type InvocationPayload struct {
	Input  string
	Output string
}

type WorkflowPayload struct {
	WhenStart time.Time
	WhenEnd   time.Time
}

type ActivityPayload struct {
	InputCount  int
	OutputCount int
}

// TaintPayload is a heritable marking asserted by Claimant.
type TaintPayload struct {
	Claimant    string
	Description string
	AssertedAt  time.Time
}

type GenericPayload struct{}

func (DataPayload) payload()       {}
func (InvocationPayload) payload() {}
func (WorkflowPayload) payload()   {}
func (ActivityPayload) payload()   {}
func (TaintPayload) payload()      {}
func (GenericPayload) payload()    {}

func KindOf(p Payload) NodeKind {
	switch p.(type) {
	case DataPayload:
		return KindData
	case InvocationPayload:
		return KindInvocation
	case WorkflowPayload:
		return KindWorkflow
	case ActivityPayload:
		return KindActivity
	case TaintPayload:
		return KindTaint
	default:
		return KindGeneric
	}
}

// BlankPayload returns the empty payload of the same kind as p.
func BlankPayload(p Payload) Payload {
	switch v := p.(type) {
	case DataPayload:
		return DataPayload{Subtype: v.Subtype}
	case InvocationPayload:
		return InvocationPayload{}
	case WorkflowPayload:
		return WorkflowPayload{}
	case ActivityPayload:
		return ActivityPayload{}
	case TaintPayload:
		return TaintPayload{}
	default:
		return GenericPayload{}
	}
}

func NewTaint(claimant, description string) *Node {
	now := time.Now().UTC()
	n := NewNode("taint", TaintPayload{
		Claimant:    claimant,
		Description: description,
		AssertedAt:  now,
	})
	n.OwnerID = claimant
	n.Created = now
	return n
}
