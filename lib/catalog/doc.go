// Package catalog contains the product catalog served over rpc.
//
// The catalog is an external collaborator of the packet transport: the rpc
// server only reaches it through the IStore interface. NewMemoryStore returns
// a process-local implementation backed by concurrent maps, which is what
// `drpc serve` uses.
package catalog
