// Package healing repairs repository states that block task progress.
//
// A Chain holds an ordered list of Strategy values. Heal asks each strategy
// whether it can handle the context; the first claimant that succeeds wins.
// A claimant that fails does not stop the chain, the next claimant is tried.
// When every claimant fails the chain reports no_fix_found.
//
// Strategies are stateless. Each one diagnoses a single condition through
// the gitops client and applies a single repair, so new conditions are
// covered by inserting a new strategy rather than editing an existing one.
package healing
