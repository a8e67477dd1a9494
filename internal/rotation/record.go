package rotation

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of credential kinds cfrotate can rotate. The kind
// tag in a secret record selects the attribute schema and the rotator.
type Kind string

const (
	// KindAPIToken is an API access token, rotated by alternating between
	// two live token identities.
	KindAPIToken Kind = "apiToken"

	// KindServiceKey is an origin tunnel service key. The issuing service
	// offers no identity, lifecycle, or verification for this kind; each
	// rotation simply requests a fresh value.
	KindServiceKey Kind = "tunnelServiceKey"

	// KindTunnelToken is an Argo tunnel authorization token, assembled per
	// rotation from a fresh private key, an origin certificate, and a
	// service key.
	KindTunnelToken Kind = "argoTunnelToken"
)

// Kinds returns all supported credential kinds.
func Kinds() []Kind {
	return []Kind{KindAPIToken, KindServiceKey, KindTunnelToken}
}

// Known reports whether k is a supported credential kind.
func (k Kind) Known() bool {
	switch k {
	case KindAPIToken, KindServiceKey, KindTunnelToken:
		return true
	}
	return false
}

// Record is the JSON payload stored in a secret version: a kind tag and the
// kind-specific attribute object. Records are immutable values; phase
// handlers construct a new record rather than editing one in place.
type Record struct {
	Type       Kind            `json:"Type"`
	Attributes json.RawMessage `json:"Attributes"`
}

// ParseRecord decodes a secret payload and rejects unknown kinds.
func ParseRecord(payload []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("malformed secret record: %w", err)
	}
	if !rec.Type.Known() {
		return Record{}, fmt.Errorf("unknown credential kind %q", rec.Type)
	}
	return rec, nil
}

// Encode renders the record as the secret payload to persist.
func (r Record) Encode() ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode secret record: %w", err)
	}
	return payload, nil
}

// WithAttributes returns a new record of the same kind carrying the given
// attribute struct.
func (r Record) WithAttributes(attrs interface{}) (Record, error) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode attributes: %w", err)
	}
	return Record{Type: r.Type, Attributes: raw}, nil
}

// APITokenAttributes is the attribute schema for KindAPIToken. TokenID is
// absent only before the first successful rotation. When OtherTokenID is
// present it names a distinct token identity; the pair forms the
// alternation set.
type APITokenAttributes struct {
	Name         string            `json:"Name"`
	Policies     []json.RawMessage `json:"Policies"`
	ValidDays    int               `json:"ValidDays"`
	TokenID      string            `json:"TokenId,omitempty"`
	TokenValue   string            `json:"TokenValue,omitempty"`
	OtherTokenID string            `json:"OtherTokenId,omitempty"`
}

// ServiceKeyAttributes is the attribute schema for KindServiceKey.
type ServiceKeyAttributes struct {
	KeyValue string `json:"KeyValue"`
}

// TunnelTokenAttributes is the attribute schema for KindTunnelToken. The
// service key is read from another secret's current version when
// TunnelServiceKeyArn is set, otherwise from the configured fallback.
type TunnelTokenAttributes struct {
	Hostname            string `json:"Hostname"`
	ValidityDays        int    `json:"ValidityDays"`
	ZoneID              string `json:"ZoneId"`
	TunnelServiceKeyArn string `json:"TunnelServiceKeyArn,omitempty"`
	TokenValue          string `json:"TokenValue,omitempty"`
}

// APIToken decodes the record's attributes as an API token schema.
func (r Record) APIToken() (APITokenAttributes, error) {
	var attrs APITokenAttributes
	if err := r.decodeAttributes(KindAPIToken, &attrs); err != nil {
		return APITokenAttributes{}, err
	}
	return attrs, nil
}

// ServiceKey decodes the record's attributes as a service key schema.
func (r Record) ServiceKey() (ServiceKeyAttributes, error) {
	var attrs ServiceKeyAttributes
	if err := r.decodeAttributes(KindServiceKey, &attrs); err != nil {
		return ServiceKeyAttributes{}, err
	}
	return attrs, nil
}

// TunnelToken decodes the record's attributes as a tunnel token schema.
func (r Record) TunnelToken() (TunnelTokenAttributes, error) {
	var attrs TunnelTokenAttributes
	if err := r.decodeAttributes(KindTunnelToken, &attrs); err != nil {
		return TunnelTokenAttributes{}, err
	}
	return attrs, nil
}

func (r Record) decodeAttributes(want Kind, out interface{}) error {
	if r.Type != want {
		return fmt.Errorf("record kind is %q, not %q", r.Type, want)
	}
	if len(r.Attributes) == 0 {
		return fmt.Errorf("record of kind %q has no attributes", r.Type)
	}
	if err := json.Unmarshal(r.Attributes, out); err != nil {
		return fmt.Errorf("malformed %s attributes: %w", r.Type, err)
	}
	return nil
}
