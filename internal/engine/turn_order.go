package engine

import (
	"slices"

	"github.com/samber/lo"
)

// BuildTurnOrder concatenates both groups' living monsters (group 1 first,
// then group 2, each in roster order) and sorts by descending speed. The sort
// is stable: equal speeds keep their insertion order, so two runs over the
// same groups always produce the same sequence.
func BuildTurnOrder(p1, p2 Group) []Monster {
	all := make([]Monster, 0, len(p1.Monsters)+len(p2.Monsters))
	for _, m := range append(slices.Clone(p1.Monsters), p2.Monsters...) {
		if m.Alive() {
			all = append(all, m.clone())
		}
	}
	slices.SortStableFunc(all, func(a, b Monster) int {
		return b.Speed - a.Speed
	})
	return all
}

// LivingEnemies returns every living monster in the turn order belonging to
// the other player.
func LivingEnemies(s State, playerID int) []Monster {
	return lo.Filter(s.TurnOrder, func(m Monster, _ int) bool {
		return m.Alive() && m.PlayerID != playerID
	})
}
