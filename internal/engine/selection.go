package engine

// SelectionSet holds the users picked for a bulk action. It must stay a
// subset of the visible users: Session clears it whenever the filter or the
// population changes. The zero value is an empty selection.
type SelectionSet struct {
	ids IDSet
}

// Toggle flips id and reports whether it is now selected
func (s *SelectionSet) Toggle(id int64) bool {
	if s.ids == nil {
		s.ids = NewIDSet()
	}
	if s.ids.Has(id) {
		delete(s.ids, id)
		return false
	}
	s.ids.Add(id)
	return true
}

// SelectAll replaces the selection with exactly visible when checked, and
// clears it otherwise
func (s *SelectionSet) SelectAll(visible []int64, checked bool) {
	if !checked {
		s.Clear()
		return
	}
	s.ids = NewIDSet(visible...)
}

// Clear empties the selection
func (s *SelectionSet) Clear() {
	s.ids = nil
}

// IsSelected reports whether id is selected
func (s *SelectionSet) IsSelected(id int64) bool {
	return s.ids.Has(id)
}

// AllSelected reports whether every visible id is selected and there is at least one
func (s *SelectionSet) AllSelected(visible []int64) bool {
	if len(visible) == 0 {
		return false
	}
	for _, id := range visible {
		if !s.ids.Has(id) {
			return false
		}
	}
	return true
}

// IDs returns the selected ids in ascending order
func (s *SelectionSet) IDs() []int64 {
	return s.ids.Slice()
}

// Len returns the number of selected ids
func (s *SelectionSet) Len() int {
	return s.ids.Len()
}
