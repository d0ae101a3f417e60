// Package cfgtree is the data model for build configuration documents.
//
// A Value is a tagged variant: null, scalar, sequence or mapping. Mappings
// keep key insertion order so that targets, imports and data sources are
// processed in the order they were declared. All merge operations are pure:
// they return new trees and never modify their inputs.
package cfgtree
