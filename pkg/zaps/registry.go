// Package zaps routes value-conversion ("zap") requests to one of a closed
// set of external providers via a static eligibility table.
package zaps

import (
	"fmt"
	"strings"

	"github.com/meridian-fi/vaultsim/pkg/zaps/zapTypes"
)

// EligibilityTable lists, per network and vault, the provider tags able to
// serve that vault in preference order. Routing consults this table instead
// of probing providers at runtime; the first eligible registered provider
// wins and there is no fallback within a single call.
type EligibilityTable map[uint64]map[string][]zapTypes.ProviderTag

// DefaultEligibilityTable covers the vaults the SDK ships support for.
var DefaultEligibilityTable = EligibilityTable{
	1: {
		// yvDAI
		"0xda816459f1ab5631232fe5e97a05bbbb94970c95": {zapTypes.ProviderTag_Portals, zapTypes.ProviderTag_Wido},
		// yvUSDC
		"0xa354f35829ae975e850e23e9615b11da1b3dc4de": {zapTypes.ProviderTag_Portals},
		// yvWETH
		"0xa258c4606ca8206d8aa700ce2143d7db854d168c": {zapTypes.ProviderTag_Portals, zapTypes.ProviderTag_Wido},
	},
	10: {
		// yvUSDC.e
		"0xad17a225074191d5c8a37b50fda1ae278a2ee6a2": {zapTypes.ProviderTag_Wido},
	},
	137: {
		"0xa013fbd4b711f9ded6fb09c1c0d358e2fbc2eaa0": {zapTypes.ProviderTag_Wido},
	},
}

type Registry struct {
	providers map[zapTypes.ProviderTag]zapTypes.IZapProvider
	table     EligibilityTable
}

func NewRegistry(table EligibilityTable, providers ...zapTypes.IZapProvider) *Registry {
	byTag := make(map[zapTypes.ProviderTag]zapTypes.IZapProvider, len(providers))
	for _, p := range providers {
		byTag[p.Tag()] = p
	}
	return &Registry{
		providers: byTag,
		table:     table,
	}
}

// SelectProvider returns the first provider in the vault's eligibility list
// that is registered.
func (r *Registry) SelectProvider(networkId uint64, vault string) (zapTypes.IZapProvider, error) {
	vaults, ok := r.table[networkId]
	if !ok {
		return nil, fmt.Errorf("no zap providers registered for network %d", networkId)
	}
	tags, ok := vaults[strings.ToLower(vault)]
	if !ok {
		return nil, fmt.Errorf("vault %s is not zap-eligible on network %d", vault, networkId)
	}
	for _, tag := range tags {
		if p, ok := r.providers[tag]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no registered provider serves vault %s on network %d", vault, networkId)
}
