package domain

// Constraints are the user requirements extracted by the dialogue layer.
type Constraints struct {
	// Values maps a constraint key (e.g. "cuisine") to requested values.
	// Used by exact and word-in filters.
	Values map[string][]string `json:"values,omitempty"`

	// Ranges maps a constraint key (e.g. "price") to a numeric range such as "10-20".
	Ranges map[string]string `json:"ranges,omitempty"`

	// Locations lists named places the user wants to be near.
	Locations []string `json:"locations,omitempty"`
}

// ConversationState is the slice of dialogue state the filters read.
type ConversationState struct {
	Constraints Constraints `json:"constraints"`

	// AlreadyRecommended lists item ids or names shown earlier in the dialogue.
	AlreadyRecommended []string `json:"already_recommended,omitempty"`
}

// ValuesFor returns the requested values for a constraint key.
func (s *ConversationState) ValuesFor(key string) []string {
	if s == nil || s.Constraints.Values == nil {
		return nil
	}
	return s.Constraints.Values[key]
}

// RangeFor returns the requested range for a constraint key.
func (s *ConversationState) RangeFor(key string) (string, bool) {
	if s == nil || s.Constraints.Ranges == nil {
		return "", false
	}
	r, ok := s.Constraints.Ranges[key]
	return r, ok && r != ""
}

// IsEmpty reports whether the state carries no constraints or exclusions.
func (s *ConversationState) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.Constraints.Values) == 0 &&
		len(s.Constraints.Ranges) == 0 &&
		len(s.Constraints.Locations) == 0 &&
		len(s.AlreadyRecommended) == 0
}
