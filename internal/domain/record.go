package domain

// TextRecord is one upstream text row to embed: a movie or user description.
// Immutable once produced.
type TextRecord struct {
	ID   int64
	Text string
}

// EmbeddingRecord is one durable embedding: unique by ID within a store,
// never mutated after write.
type EmbeddingRecord struct {
	ID     int64
	Vector []float32
}

// MovieDetail is the denormalized detail row stored as the point payload.
type MovieDetail struct {
	ID   int64
	Text string
}

// Payload returns the detail record as an index payload map.
func (d MovieDetail) Payload() map[string]any {
	return map[string]any{"id": d.ID, "text": d.Text}
}

// UserProfile is a user's text description plus their rated movies grouped by
// rating category. Each list keeps upstream order.
type UserProfile struct {
	ID           int64
	Text         string
	FavouriteIDs []int64
	MediocreIDs  []int64
	BadIDs       []int64
}

// Payload returns the profile as an index payload map.
func (p UserProfile) Payload() map[string]any {
	return map[string]any{"id": p.ID, "text": p.Text}
}

// RatedIDs returns the union of all rated movie ids, used as the exclusion set.
func (p UserProfile) RatedIDs() map[int64]struct{} {
	rated := make(map[int64]struct{}, len(p.FavouriteIDs)+len(p.MediocreIDs)+len(p.BadIDs))
	for _, ids := range [][]int64{p.FavouriteIDs, p.MediocreIDs, p.BadIDs} {
		for _, id := range ids {
			rated[id] = struct{}{}
		}
	}
	return rated
}
