// Package peering provides node-to-node transport for DocMesh.
package peering

import (
	"net"
	"strconv"
)

// Endpoint is this node's peering address. Resolved once at startup
// and passed by value; never mutated afterwards.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

// String returns the endpoint in "ip:port" form.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP.String(), strconv.Itoa(int(e.Port)))
}

// Descriptor returns the node descriptor used in nodes-config entries:
// "ip:peeringPort:apiPort".
func (e Endpoint) Descriptor(apiPort uint16) string {
	return e.IP.String() + ":" + strconv.Itoa(int(e.Port)) + ":" + strconv.Itoa(int(apiPort))
}
