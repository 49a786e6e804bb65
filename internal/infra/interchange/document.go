package interchange

import (
	"time"

	"lineage/internal/domain"
)

// Document is the node/link/actor exchange format shared with exporters.
// Links address nodes both by index (source, target) and by OID (from, to).
type Document struct {
	Nodes  []NodeDoc  `json:"nodes"`
	Links  []LinkDoc  `json:"links"`
	Actors []ActorDoc `json:"actors,omitempty"`
	NPEs   []NPEDoc   `json:"npes,omitempty"`
	Seeds  []string   `json:"seeds,omitempty"`
}

type NodeDoc struct {
	ID          string                `json:"id"`
	Label       string                `json:"label"`
	Type        string                `json:"type"`
	Subtype     string                `json:"subtype,omitempty"`
	Metadata    map[string]string     `json:"metadata,omitempty"`
	Created     time.Time             `json:"created"`
	Owner       string                `json:"owner,omitempty"`
	Uncertainty float64               `json:"uncertainty,omitempty"`
	Privileges  []string              `json:"privileges,omitempty"`
	SGFs        []string              `json:"sgfs,omitempty"`
	Payload     *domain.PayloadRecord `json:"payload,omitempty"`
	Tags        map[string]string     `json:"tags,omitempty"`
	Access      string                `json:"access,omitempty"`
	Surrogate   *SurrogateDoc         `json:"surrogate,omitempty"`
}

type SurrogateDoc struct {
	Policy          string            `json:"policy"`
	Quality         map[string]string `json:"quality,omitempty"`
	MoreInformation string            `json:"more_information,omitempty"`
}

type LinkDoc struct {
	Source   int    `json:"source"`
	Target   int    `json:"target"`
	From     string `json:"from"`
	To       string `json:"to"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Workflow string `json:"workflow,omitempty"`
	Inferred bool   `json:"inferred,omitempty"`
}

type ActorDoc struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
	Type    string    `json:"type,omitempty"`
}

type NPEDoc struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Type    string    `json:"type"`
	Created time.Time `json:"created"`
}
