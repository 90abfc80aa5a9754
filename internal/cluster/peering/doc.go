// Package peering provides the internal node-to-node channel for
// DocMesh: resolution of this node's peering endpoint and the TCP
// transport carrying replication traffic between cluster members.
//
// The peering channel is distinct from the public API channel. Its
// endpoint is resolved exactly once at startup, from explicit
// configuration or by enumerating private interface addresses with an
// optional subnet constraint, and is immutable thereafter.
package peering
