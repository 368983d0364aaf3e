// Package gitops invokes repository operations as atomic external git
// calls. The substrate only needs textual success/failure and captured
// output, not a parsed object model, so the surface is a thin Runner over
// the git binary plus a Client with the queries the healing chain asks.
package gitops
