package details

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMovies(t *testing.T) {
	path := writeFile(t, "movies.csv",
		"id,text\n"+
			"862,\"Toy Story. Animated adventure, 1995.\"\n"+
			"8844,Jumanji. Board game unleashes a jungle.\n")

	movies, err := LoadMovies(path)
	if err != nil {
		t.Fatalf("LoadMovies() error: %v", err)
	}

	if len(movies.All()) != 2 {
		t.Fatalf("All() len = %d, want 2", len(movies.All()))
	}
	d, ok := movies.Get(862)
	if !ok {
		t.Fatal("Get(862) miss")
	}
	if d.Text != "Toy Story. Animated adventure, 1995." {
		t.Errorf("Get(862).Text = %q", d.Text)
	}
	if _, ok := movies.Get(1); ok {
		t.Error("Get(1) hit, want miss")
	}

	recs := movies.TextRecords()
	if recs[0].ID != 862 || recs[1].ID != 8844 {
		t.Errorf("TextRecords() order = %v", []int64{recs[0].ID, recs[1].ID})
	}
}

func TestLoadMovies_BadID(t *testing.T) {
	path := writeFile(t, "movies.csv", "id,text\nabc,whatever\n")
	if _, err := LoadMovies(path); err == nil {
		t.Fatal("LoadMovies() = nil error for non-numeric id")
	}
}

func TestLoadMovies_MissingFile(t *testing.T) {
	if _, err := LoadMovies(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("LoadMovies() = nil error for missing file")
	}
}

func TestLoadUsers(t *testing.T) {
	path := writeFile(t, "users.csv",
		"id,text,favourite_movies,mediocre_movies,bad_movies\n"+
			"1,\"Likes animation.\",\"[862, 8844]\",\"[15602]\",\"[]\"\n"+
			"2,\"Likes thrillers.\",\"[]\",\"[]\",\"[31, 11860]\"\n")

	users, err := LoadUsers(path)
	if err != nil {
		t.Fatalf("LoadUsers() error: %v", err)
	}

	p, ok := users.Get(1)
	if !ok {
		t.Fatal("Get(1) miss")
	}
	if len(p.FavouriteIDs) != 2 || p.FavouriteIDs[0] != 862 || p.FavouriteIDs[1] != 8844 {
		t.Errorf("FavouriteIDs = %v", p.FavouriteIDs)
	}
	if len(p.MediocreIDs) != 1 || p.MediocreIDs[0] != 15602 {
		t.Errorf("MediocreIDs = %v", p.MediocreIDs)
	}
	if len(p.BadIDs) != 0 {
		t.Errorf("BadIDs = %v, want empty", p.BadIDs)
	}

	p2, _ := users.Get(2)
	rated := p2.RatedIDs()
	if _, ok := rated[31]; !ok {
		t.Error("RatedIDs missing 31")
	}
}

func TestLoadUsers_BadList(t *testing.T) {
	path := writeFile(t, "users.csv",
		"id,text,favourite_movies,mediocre_movies,bad_movies\n"+
			"1,x,\"[not json]\",\"[]\",\"[]\"\n")
	if _, err := LoadUsers(path); err == nil {
		t.Fatal("LoadUsers() = nil error for malformed list")
	}
}
