// Package domain defines the core business entities for sercha-rec.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Item: A recommendable catalog entry with structured attributes
//   - EvidenceCorpus: Review snippets, index-aligned with the vector index
//   - Ranking: Tie-grouped item ids produced by the ranking engine
//   - Recommendation: Hydrated items with their supporting evidence
//   - ConversationState: Constraints gathered by the dialogue layer
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
