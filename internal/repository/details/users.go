package details

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cinevec/cinevec/internal/domain"
)

// Users is an in-memory, id-keyed view of the user description table.
type Users struct {
	ordered []domain.UserProfile
	byID    map[int64]int
}

// LoadUsers reads a CSV with id, text and the three rated-movie list columns.
// Lists are serialized as JSON arrays of ids.
func LoadUsers(path string) (*Users, error) {
	u := &Users{byID: make(map[int64]int)}
	err := readTable(path, func(row map[string]string) error {
		id, err := strconv.ParseInt(row["id"], 10, 64)
		if err != nil {
			return fmt.Errorf("parse user id %q: %w", row["id"], err)
		}

		profile := domain.UserProfile{ID: id, Text: row["text"]}
		for _, col := range []struct {
			name string
			dst  *[]int64
		}{
			{"favourite_movies", &profile.FavouriteIDs},
			{"mediocre_movies", &profile.MediocreIDs},
			{"bad_movies", &profile.BadIDs},
		} {
			ids, err := parseIDList(row[col.name])
			if err != nil {
				return fmt.Errorf("parse %s for user %d: %w", col.name, id, err)
			}
			*col.dst = ids
		}

		u.byID[id] = len(u.ordered)
		u.ordered = append(u.ordered, profile)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Get returns the profile for a user id.
func (u *Users) Get(id int64) (domain.UserProfile, bool) {
	i, ok := u.byID[id]
	if !ok {
		return domain.UserProfile{}, false
	}
	return u.ordered[i], true
}

// All returns profiles in table order.
func (u *Users) All() []domain.UserProfile { return u.ordered }

// TextRecords returns the profiles as the writer's embedding source, in table order.
func (u *Users) TextRecords() []domain.TextRecord {
	recs := make([]domain.TextRecord, len(u.ordered))
	for i, p := range u.ordered {
		recs[i] = domain.TextRecord{ID: p.ID, Text: p.Text}
	}
	return recs
}

func parseIDList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("parse id list %q: %w", s, err)
	}
	return ids, nil
}
