package bloomstore

import (
	"github.com/huandu/skiplist"
)

// universe is the exact, ordered set of every item id ever added.
// It only grows. Callers synchronise access.
type universe struct {
	skl *skiplist.SkipList
}

func newUniverse() *universe {
	return &universe{skl: skiplist.New(skiplist.Int64)}
}

// Insert reports whether id was not present before.
func (u *universe) Insert(id int64) bool {
	if u.skl.Get(id) != nil {
		return false
	}
	u.skl.Set(id, struct{}{})
	return true
}

func (u *universe) Contains(id int64) bool {
	return u.skl.Get(id) != nil
}

func (u *universe) Len() int {
	return u.skl.Len()
}

// Each visits ids in ascending order until fn returns false.
func (u *universe) Each(fn func(id int64) bool) {
	for elem := u.skl.Front(); elem != nil; elem = elem.Next() {
		if !fn(elem.Key().(int64)) {
			return
		}
	}
}
