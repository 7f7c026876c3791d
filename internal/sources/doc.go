// Package sources declares the known external data sources and maintains
// the registry mapping source identifiers to their descriptors.
//
// A SourceDescriptor captures everything needed to locate and verify one
// external dataset provider: the HTTP(S) endpoint template parameterized by
// version and region, the artifact data format, and the digest algorithm
// used for integrity verification.
//
// Registries are explicitly constructed and passed to collaborators rather
// than held in package state, so multiple configurations can coexist in one
// process. Registration is expected to happen once at startup; lookups are
// read-mostly afterwards.
package sources
