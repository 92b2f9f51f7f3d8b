// Package catalog implements the client commands of the drpc CLI: one
// command per catalog operation plus the perf load test.
package catalog
