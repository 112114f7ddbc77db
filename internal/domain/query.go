package domain

// Query is a search query: either raw text to be resolved through the
// embedder, or an already prepared vector. The two variants are explicit so
// callers switch on kind instead of inspecting runtime types.
type Query struct {
	text   string
	vector []float32
	isText bool
}

// Text creates a text query.
func Text(s string) Query {
	return Query{text: s, isText: true}
}

// Vector creates a vector query.
func Vector(v []float32) Query {
	return Query{vector: v}
}

// IsText reports whether the query is the text variant.
func (q Query) IsText() bool { return q.isText }

// Text returns the query text. Empty for vector queries.
func (q Query) Text() string { return q.text }

// Vector returns the query vector. Nil for text queries.
func (q Query) Vector() []float32 { return q.vector }
