package domain

// Filter restricts search results by chunk attributes. Zero-value fields
// impose no constraint; the zero filter accepts every hit.
type Filter struct {
	DocID    string
	Source   string
	DateFrom *int64
	DateTo   *int64
}

// IsZero reports whether the filter constrains anything at all.
func (f *Filter) IsZero() bool {
	return f == nil || (f.DocID == "" && f.Source == "" && f.DateFrom == nil && f.DateTo == nil)
}

// Validate rejects an inverted date range before any search runs.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	if f.DateFrom != nil && f.DateTo != nil && *f.DateFrom > *f.DateTo {
		return ErrInvalidFilterRange
	}
	return nil
}

// Matches evaluates the filter against one hit's attributes. A hit with no
// timestamp fails any filter that carries a date bound.
func (f *Filter) Matches(docID, source string, ts *int64) bool {
	if f == nil {
		return true
	}
	if f.DocID != "" && docID != f.DocID {
		return false
	}
	if f.Source != "" && source != f.Source {
		return false
	}
	if f.DateFrom != nil || f.DateTo != nil {
		if ts == nil {
			return false
		}
		if f.DateFrom != nil && *ts < *f.DateFrom {
			return false
		}
		if f.DateTo != nil && *ts > *f.DateTo {
			return false
		}
	}
	return true
}
