// Package revocation provides the in-process deny-list consulted before any
// durable lookup.
//
// The cache only shortens the time for a revocation made by this process to
// take effect. It is never authoritative: a miss means "not known to be
// revoked here", and callers validating refresh or reset credentials must
// still consult the credential store. Entries expire when the credential they
// shadow expires, so the set stays bounded by the number of live tokens.
package revocation
