package types

import (
	"fmt"
	"strings"

	"slotwatch/utils"
)

// Network is the name of a beacon chain network, as reported in meta_network_name
type Network string

const (
	Mainnet Network = "mainnet"
	Sepolia Network = "sepolia"
	Holesky Network = "holesky"
)

// Networks is the allow-list of networks tracked by the pipeline and served by the API
var Networks = []Network{Mainnet, Sepolia, Holesky}

func (n Network) String() string {
	return string(n)
}

func (n Network) Valid() bool {
	for _, known := range Networks {
		if n == known {
			return true
		}
	}
	return false
}

// ParseNetwork accepts a network name in any case and rejects names outside the allow-list
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", utils.ErrUnknownNetwork, s)
	}
	return n, nil
}
