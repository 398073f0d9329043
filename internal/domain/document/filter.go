package document

// ListFilter narrows a listing to documents matching every set field.
// Zero-value fields are ignored; a zero filter matches everything.
type ListFilter struct {
	Tag   string
	State string
}

// IsZero reports whether no filter fields are set.
func (f ListFilter) IsZero() bool { return f == ListFilter{} }
