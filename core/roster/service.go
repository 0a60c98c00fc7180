package roster

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ubao/storage/document"
)

var (
	// errors
	ErrEmptyRoster = errors.New("roster is empty")

	// letters name dealt groups: "Group A", "Group B", ...
	groupLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

type Service struct {
	store document.Store
	rng   *rand.Rand
}

// NewService builds the roster tools; src may be fixed in tests for
// deterministic picks.
func NewService(store document.Store, src rand.Source) *Service {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Service{store: store, rng: rand.New(src)}
}

func (svc *Service) Get(ctx context.Context, teacherID string) (Roster, error) {
	doc, err := svc.store.Get(ctx, rosterPath(teacherID))
	if err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return Roster{Students: []string{}}, nil
		}
		return Roster{}, errors.Wrap(err, "getting roster")
	}
	return fromDoc(doc), nil
}

func (svc *Service) Put(ctx context.Context, teacherID string, ur UpdateRoster) (Roster, error) {
	r := Roster{Students: ur.Students}
	if err := svc.store.Set(ctx, rosterPath(teacherID), r.toFields()); err != nil {
		return Roster{}, errors.Wrap(err, "saving roster")
	}
	return r, nil
}

// Pick draws n distinct students at random; n is clamped to the roster size.
func (svc *Service) Pick(ctx context.Context, teacherID string, n int) ([]string, error) {
	r, err := svc.Get(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if len(r.Students) == 0 {
		return nil, ErrEmptyRoster
	}
	if n < 1 {
		n = 1
	}
	return pick(r.Students, n, svc.rng), nil
}

// Split shuffles the roster and deals it into k groups whose sizes differ by
// at most one; k is clamped to [1, roster size].
func (svc *Service) Split(ctx context.Context, teacherID string, k int) ([]Group, error) {
	r, err := svc.Get(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if len(r.Students) == 0 {
		return nil, ErrEmptyRoster
	}
	return split(r.Students, k, svc.rng), nil
}

func pick(students []string, n int, rng *rand.Rand) []string {
	if n > len(students) {
		n = len(students)
	}
	shuffled := shuffle(students, rng)
	return shuffled[:n]
}

func split(students []string, k int, rng *rand.Rand) []Group {
	if k < 1 {
		k = 1
	}
	if k > len(students) {
		k = len(students)
	}

	shuffled := shuffle(students, rng)
	groups := make([]Group, k)
	for i := range groups {
		groups[i] = Group{Name: groupName(i), Students: []string{}}
	}
	for i, s := range shuffled {
		g := i % k
		groups[g].Students = append(groups[g].Students, s)
	}
	return groups
}

func shuffle(students []string, rng *rand.Rand) []string {
	shuffled := make([]string, len(students))
	copy(shuffled, students)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

func groupName(i int) string {
	if i < len(groupLetters) {
		return "Group " + string(groupLetters[i])
	}
	return fmt.Sprintf("Group %d", i+1)
}
