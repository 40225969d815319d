package engine

import "fmt"

// SkillKit is the fixed two-move set every battle monster fights with: a
// no-cooldown basic attack and a heavier strike gated by a two-turn cooldown.
// Both scale off the monster's strength stat.
func SkillKit(strength int, element string) []Skill {
	return []Skill{
		{
			ID:          SkillBasicAttack,
			Name:        "Basic Attack",
			Description: "A simple physical attack",
			Damage:      int(float64(strength) * 1.2),
			Cooldown:    0,
			Element:     element,
		},
		{
			ID:          SkillPowerStrike,
			Name:        "Power Strike",
			Description: "A stronger attack with higher damage",
			Damage:      int(float64(strength) * 1.8),
			Cooldown:    2,
			Element:     element,
		},
	}
}

func ownerGroup(s State, playerID int) Group {
	if s.Player1.PlayerID == playerID {
		return s.Player1
	}
	if s.Player2.PlayerID == playerID {
		return s.Player2
	}
	return Group{}
}

func findMonster(s State, id int) (Monster, bool) {
	for _, m := range s.TurnOrder {
		if m.ID == id {
			return m.clone(), true
		}
	}
	return Monster{}, false
}

// writeBack propagates an updated monster into both group views and the
// turn-order view. Every mutation must go through here so the three views
// never disagree.
func writeBack(s *State, m Monster) {
	writeGroup(&s.Player1, m)
	writeGroup(&s.Player2, m)
	order := make([]Monster, len(s.TurnOrder))
	copy(order, s.TurnOrder)
	for i := range order {
		if order[i].ID == m.ID {
			order[i] = m.clone()
		}
	}
	s.TurnOrder = order
}

func writeGroup(g *Group, m Monster) {
	for i := range g.Monsters {
		if g.Monsters[i].ID == m.ID {
			monsters := make([]Monster, len(g.Monsters))
			copy(monsters, g.Monsters)
			monsters[i] = m.clone()
			g.Monsters = monsters
			return
		}
	}
}

// Username reports the display name for a player id within the session.
func (s State) Username(playerID int) string {
	switch playerID {
	case s.Player1.PlayerID:
		return s.Player1.Username
	case s.Player2.PlayerID:
		return s.Player2.Username
	}
	return fmt.Sprintf("player %d", playerID)
}
