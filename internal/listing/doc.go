// Package listing converts heterogeneous provider payloads into the canonical
// listing record consumed by the ranking engine.
//
// Provider payloads are untyped decoded JSON. Extraction never uses
// reflection: every lookup goes through Value, a small variant type with
// Null, Scalar, Mapping and Sequence kinds, and through fixed, named key
// precedence lists. Canonicalize never fails; a missing or malformed field
// degrades to a documented default so downstream consumers always receive a
// structurally complete record.
package listing
