package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTurnOrder_DescendingSpeed(t *testing.T) {
	g1 := Group{PlayerID: 1, Monsters: []Monster{testMonster(1, 1, 100, 10, 100)}}
	g2 := Group{PlayerID: 2, Monsters: []Monster{testMonster(2, 2, 100, 10, 50)}}

	order := BuildTurnOrder(g1, g2)
	require.Len(t, order, 2)
	assert.Equal(t, 1, order[0].ID, "speed 100 acts before speed 50")
	assert.Equal(t, 2, order[1].ID)
}

func TestBuildTurnOrder_StableOnEqualSpeed(t *testing.T) {
	g1 := Group{PlayerID: 1, Monsters: []Monster{
		testMonster(1, 1, 100, 10, 60),
		testMonster(2, 1, 100, 10, 60),
	}}
	g2 := Group{PlayerID: 2, Monsters: []Monster{
		testMonster(3, 2, 100, 10, 60),
	}}

	// Equal speeds keep insertion order: group 1 before group 2, within-group
	// order preserved — identically on every run.
	for i := 0; i < 20; i++ {
		order := BuildTurnOrder(g1, g2)
		require.Len(t, order, 3)
		assert.Equal(t, []int{1, 2, 3},
			[]int{order[0].ID, order[1].ID, order[2].ID})
	}
}

func TestBuildTurnOrder_ExcludesDead(t *testing.T) {
	dead := testMonster(1, 1, 100, 10, 100)
	dead.CurrentHP = 0
	g1 := Group{PlayerID: 1, Monsters: []Monster{dead, testMonster(2, 1, 100, 10, 30)}}
	g2 := Group{PlayerID: 2, Monsters: []Monster{testMonster(3, 2, 100, 10, 50)}}

	order := BuildTurnOrder(g1, g2)
	require.Len(t, order, 2)
	assert.Equal(t, 3, order[0].ID)
	assert.Equal(t, 2, order[1].ID)
}

func TestLivingEnemies(t *testing.T) {
	s := testState()
	dead, _ := findMonster(s, 21)
	dead.CurrentHP = 0
	writeBack(&s, dead)

	enemies := LivingEnemies(s, 1)
	require.Len(t, enemies, 1)
	assert.Equal(t, 20, enemies[0].ID)
}
