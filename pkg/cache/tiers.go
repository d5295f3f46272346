package cache

import "fmt"

// Logical tier names of the current version set.
const (
	TierStatic  = "static"
	TierDynamic = "dynamic"
	TierAsset   = "asset"
)

// TierSet names the tiers of one namespace and version.
type TierSet struct {
	Namespace string
	Version   string
}

// Name returns "{namespace}-{tier}-{version}".
func (s TierSet) Name(tier string) string {
	return fmt.Sprintf("%s-%s-%s", s.Namespace, tier, s.Version)
}

// Static returns the name of the provisioned tier.
func (s TierSet) Static() string { return s.Name(TierStatic) }

// Dynamic returns the name of the runtime-populated tier.
func (s TierSet) Dynamic() string { return s.Name(TierDynamic) }

// Asset returns the name of the static-asset tier.
func (s TierSet) Asset() string { return s.Name(TierAsset) }

// Names returns all current tier names.
func (s TierSet) Names() []string {
	return []string{s.Static(), s.Dynamic(), s.Asset()}
}

// Contains reports whether name belongs to the current set.
func (s TierSet) Contains(name string) bool {
	for _, n := range s.Names() {
		if n == name {
			return true
		}
	}
	return false
}
