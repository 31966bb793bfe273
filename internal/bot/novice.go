package bot

import (
	"math/rand/v2"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
)

// Novice drafts and plays uniformly at random among legal choices.
type Novice struct {
	rng *rand.Rand
}

// NewNovice returns a novice drawing from rng. rng must not be shared
// across goroutines.
func NewNovice(rng *rand.Rand) *Novice {
	return &Novice{rng: rng}
}

func (n *Novice) Draft(cat catalog.Catalog) []string {
	ids := cat.AllHeroIDs()
	n.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

func (n *Novice) Decide(ev match.Event) (Decision, bool) {
	opts := usable(ev)
	n.rng.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	for _, o := range opts {
		ts := targets(ev, o.skill.Targeting)
		if len(ts) == 0 {
			continue
		}
		return use(o, ts[n.rng.IntN(len(ts))], "random pick"), true
	}
	return swapForward(ev)
}
