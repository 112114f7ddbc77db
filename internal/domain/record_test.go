package domain

import "testing"

func TestUserProfile_RatedIDs(t *testing.T) {
	p := UserProfile{
		ID:           7,
		FavouriteIDs: []int64{1, 2},
		MediocreIDs:  []int64{2, 3},
		BadIDs:       []int64{4},
	}

	rated := p.RatedIDs()

	want := []int64{1, 2, 3, 4}
	if len(rated) != len(want) {
		t.Fatalf("RatedIDs() len = %d, want %d", len(rated), len(want))
	}
	for _, id := range want {
		if _, ok := rated[id]; !ok {
			t.Errorf("RatedIDs() missing %d", id)
		}
	}
}

func TestUserProfile_RatedIDs_Empty(t *testing.T) {
	p := UserProfile{ID: 1}
	if got := p.RatedIDs(); len(got) != 0 {
		t.Errorf("RatedIDs() = %v, want empty", got)
	}
}

func TestQuery_Variants(t *testing.T) {
	tq := Text("toy story")
	if !tq.IsText() {
		t.Error("Text query: IsText() = false")
	}
	if tq.Text() != "toy story" {
		t.Errorf("Text() = %q", tq.Text())
	}
	if tq.Vector() != nil {
		t.Errorf("Vector() = %v, want nil", tq.Vector())
	}

	vq := Vector([]float32{0.1, 0.2})
	if vq.IsText() {
		t.Error("Vector query: IsText() = true")
	}
	if len(vq.Vector()) != 2 {
		t.Errorf("Vector() len = %d", len(vq.Vector()))
	}
}
