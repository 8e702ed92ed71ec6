// Package core contains the search domain contracts, range derivation, and
// the paged range search service. Storage adapters depend on this package;
// core must not depend on any concrete index backend.
package core
