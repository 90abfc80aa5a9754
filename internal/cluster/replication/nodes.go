// Package replication provides the consensus state machine for DocMesh.
package replication

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/arvhn/docmesh-go/internal/cluster/peering"
)

// node is one parsed peer descriptor.
type node struct {
	// PeerAddr is the peering channel address ("ip:peeringPort").
	PeerAddr string
	// APIPort is the peer's public API port, carried for diagnostics.
	APIPort uint16
}

// NormalizeNodesConfig shapes a raw nodes-config blob into the form
// the state machine expects. An empty blob (single-node mode) becomes
// this node's own descriptor; anything else passes through verbatim.
// Pure function, no side effects.
func NormalizeNodesConfig(endpoint peering.Endpoint, apiPort uint16, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return endpoint.Descriptor(apiPort)
	}
	return raw
}

// parseNodes parses comma-separated peer descriptors of the form
// "host:peeringPort:apiPort" (the api port may be omitted).
func parseNodes(config string) ([]node, error) {
	var out []node

	for _, entry := range strings.Split(config, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) != 2 && len(parts) != 3 {
			return nil, fmt.Errorf("replication: malformed node descriptor %q", entry)
		}

		host := parts[0]
		if host == "" {
			return nil, fmt.Errorf("replication: missing host in descriptor %q", entry)
		}

		peerPort, err := strconv.ParseUint(parts[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("replication: bad peering port in descriptor %q: %w", entry, err)
		}

		var apiPort uint64
		if len(parts) == 3 {
			apiPort, err = strconv.ParseUint(parts[2], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("replication: bad api port in descriptor %q: %w", entry, err)
			}
		}

		out = append(out, node{
			PeerAddr: net.JoinHostPort(host, strconv.FormatUint(peerPort, 10)),
			APIPort:  uint16(apiPort),
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("replication: no node descriptors in config")
	}

	return out, nil
}
