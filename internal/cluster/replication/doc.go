// Package replication provides the consensus state machine for
// DocMesh, built on hashicorp/raft.
//
// One State per process owns the Raft node, its BoltDB-backed log and
// stable stores, and the file snapshot store under the state
// directory. Committed write entries are handed to the batch indexing
// pipeline; cluster membership is file-driven and pushed in through
// RefreshNodes by the supervisory loop.
package replication
