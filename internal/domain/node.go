package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	oidPrefix = "urn:uuid:"

	MaxMetadataKeyBytes   = 128
	MaxMetadataValueBytes = 16 * 1024
)

// NewOID returns a fresh, content-independent node identifier.
func NewOID() string {
	return oidPrefix + uuid.NewString()
}

// IsOID reports whether s is a provenance node identifier.
func IsOID(s string) bool {
	if !strings.HasPrefix(s, oidPrefix) {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(s, oidPrefix))
	return err == nil
}

type NodeKind string

const (
	KindData       NodeKind = "data"
	KindInvocation NodeKind = "invocation"
	KindWorkflow   NodeKind = "workflow"
	KindActivity   NodeKind = "activity"
	KindTaint      NodeKind = "taint"
	KindGeneric    NodeKind = "generic"
)

func ParseNodeKind(s string) (NodeKind, bool) {
	switch NodeKind(s) {
	case KindData, KindInvocation, KindWorkflow, KindActivity, KindTaint, KindGeneric:
		return NodeKind(s), true
	}
	return "", false
}

type Metadata map[string]string

func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Node is the common record shared by every provenance object. The kind of
// the node is carried by Payload.
type Node struct {
	ID             string
	Name           string
	Created        time.Time
	OwnerID        string
	Metadata       Metadata
	Uncertainty    float64
	Privileges     PrivilegeSet
	SurrogateFuncs []string
	Surrogate      *SurrogateDetail
	Payload        Payload
}

func NewNode(name string, payload Payload) *Node {
	if payload == nil {
		payload = GenericPayload{}
	}
	return &Node{
		ID:      NewOID(),
		Name:    name,
		Created: time.Now().UTC(),
		Payload: payload,
	}
}

func (n *Node) Kind() NodeKind {
	return KindOf(n.Payload)
}

func (n *Node) IsSurrogate() bool {
	return n != nil && n.Surrogate != nil
}

func (n *Node) SetMetadata(key, value string) error {
	if err := checkMetadataEntry(key, value); err != nil {
		return err
	}
	if n.Metadata == nil {
		n.Metadata = Metadata{}
	}
	n.Metadata[key] = value
	return nil
}

func (n *Node) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if n.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidNode)
	}
	if n.Uncertainty < 0 || n.Uncertainty > 1 {
		return fmt.Errorf("%w: uncertainty %v out of range", ErrInvalidNode, n.Uncertainty)
	}
	for k, v := range n.Metadata {
		if err := checkMetadataEntry(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy. Payload values are immutable and shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Metadata = n.Metadata.Clone()
	out.Privileges = append(PrivilegeSet(nil), n.Privileges...)
	out.SurrogateFuncs = append([]string(nil), n.SurrogateFuncs...)
	if n.Surrogate != nil {
		detail := *n.Surrogate
		detail.Quality = n.Surrogate.Quality.Clone()
		out.Surrogate = &detail
	}
	return &out
}

func checkMetadataEntry(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty metadata key", ErrInvalidNode)
	}
	if len(key) > MaxMetadataKeyBytes {
		return fmt.Errorf("%w: key %q exceeds %d bytes", ErrMetadataTooLarge, key[:16], MaxMetadataKeyBytes)
	}
	if len(value) > MaxMetadataValueBytes {
		return fmt.Errorf("%w: value for %q exceeds %d bytes", ErrMetadataTooLarge, key, MaxMetadataValueBytes)
	}
	return nil
}
