package rotation

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed capabilities.yaml
var capabilitiesYAML string

// KindCapability describes what the upstream service offers for a credential
// kind. Verification and revocation gaps are recorded here so the testSecret
// no-ops stay documented facts rather than silent assumptions.
type KindCapability struct {
	DisplayName          string `yaml:"display_name"`
	Strategy             string `yaml:"strategy"`
	SupportsVerification bool   `yaml:"supports_verification"`
	SupportsRevocation   bool   `yaml:"supports_revocation"`
	Notes                string `yaml:"notes"`
}

// CapabilitiesRegistry holds the capability entry for every credential kind.
type CapabilitiesRegistry struct {
	Kinds map[string]KindCapability `yaml:"kinds"`
}

var (
	capRegistry   *CapabilitiesRegistry
	capRegistryMu sync.RWMutex
)

// LoadCapabilities loads the embedded capabilities YAML.
func LoadCapabilities() (*CapabilitiesRegistry, error) {
	capRegistryMu.RLock()
	if capRegistry != nil {
		defer capRegistryMu.RUnlock()
		return capRegistry, nil
	}
	capRegistryMu.RUnlock()

	capRegistryMu.Lock()
	defer capRegistryMu.Unlock()

	// Double-check after acquiring write lock
	if capRegistry != nil {
		return capRegistry, nil
	}

	var reg CapabilitiesRegistry
	if err := yaml.Unmarshal([]byte(capabilitiesYAML), &reg); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities: %w", err)
	}

	capRegistry = &reg
	return capRegistry, nil
}

// GetKindCapability returns the capability entry for a credential kind.
func GetKindCapability(kind Kind) (*KindCapability, error) {
	reg, err := LoadCapabilities()
	if err != nil {
		return nil, err
	}
	cap, ok := reg.Kinds[string(kind)]
	if !ok {
		return nil, fmt.Errorf("unknown credential kind: %s", kind)
	}
	return &cap, nil
}

// ListKinds returns all kinds in the registry, sorted by name.
func ListKinds() []string {
	reg, err := LoadCapabilities()
	if err != nil {
		return []string{}
	}
	kinds := make([]string, 0, len(reg.Kinds))
	for name := range reg.Kinds {
		kinds = append(kinds, name)
	}
	sort.Strings(kinds)
	return kinds
}
