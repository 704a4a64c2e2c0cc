package automation

// Versioner hands out the version numbers stamped on persisted documents.
// The agent only acts on a document whose version it has not seen yet.
type Versioner struct {
	current int64
}

// InitFrom seeds the counter from doc. A nil doc seeds it with 0.
func (v *Versioner) InitFrom(doc *Document) {
	if doc == nil {
		v.current = 0
		return
	}
	v.current = doc.Version
}

// Next increments the counter and returns the new value.
func (v *Versioner) Next() int64 {
	v.current++
	return v.current
}

func (v *Versioner) Current() int64 {
	return v.current
}
