package domain

import (
	"fmt"
	"time"
)

// PayloadRecord is the flat, serializable form of every Payload variant.
// Stores and documents persist it next to the node kind and subtype.
type PayloadRecord struct {
	Value       string     `json:"value,omitempty"`
	Input       string     `json:"input,omitempty"`
	Output      string     `json:"output,omitempty"`
	WhenStart   *time.Time `json:"when_start,omitempty"`
	WhenEnd     *time.Time `json:"when_end,omitempty"`
	InputCount  int        `json:"input_count,omitempty"`
	OutputCount int        `json:"output_count,omitempty"`
	Claimant    string     `json:"claimant,omitempty"`
	Description string     `json:"description,omitempty"`
	AssertedAt  *time.Time `json:"asserted_at,omitempty"`
}

// RecordOf flattens p and returns the subtype of data payloads.
func RecordOf(p Payload) (PayloadRecord, DataSubtype) {
	switch v := p.(type) {
	case DataPayload:
		return PayloadRecord{Value: v.Value}, v.Subtype
	case InvocationPayload:
		return PayloadRecord{Input: v.Input, Output: v.Output}, ""
	case WorkflowPayload:
		return PayloadRecord{WhenStart: timePtr(v.WhenStart), WhenEnd: timePtr(v.WhenEnd)}, ""
	case ActivityPayload:
		return PayloadRecord{InputCount: v.InputCount, OutputCount: v.OutputCount}, ""
	case TaintPayload:
		return PayloadRecord{Claimant: v.Claimant, Description: v.Description, AssertedAt: timePtr(v.AssertedAt)}, ""
	default:
		return PayloadRecord{}, ""
	}
}

// PayloadFrom rebuilds the payload of the given kind.
func PayloadFrom(kind NodeKind, subtype DataSubtype, r PayloadRecord) (Payload, error) {
	switch kind {
	case KindData:
		if subtype == "" {
			subtype = DataString
		}
		if _, ok := ParseDataSubtype(string(subtype)); !ok {
			return nil, fmt.Errorf("%w: unknown data subtype %q", ErrInvalidNode, subtype)
		}
		return DataPayload{Subtype: subtype, Value: r.Value}, nil
	case KindInvocation:
		return InvocationPayload{Input: r.Input, Output: r.Output}, nil
	case KindWorkflow:
		return WorkflowPayload{WhenStart: timeOf(r.WhenStart), WhenEnd: timeOf(r.WhenEnd)}, nil
	case KindActivity:
		return ActivityPayload{InputCount: r.InputCount, OutputCount: r.OutputCount}, nil
	case KindTaint:
		return TaintPayload{Claimant: r.Claimant, Description: r.Description, AssertedAt: timeOf(r.AssertedAt)}, nil
	case KindGeneric, "":
		return GenericPayload{}, nil
	}
	return nil, fmt.Errorf("%w: unknown node kind %q", ErrInvalidNode, kind)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
