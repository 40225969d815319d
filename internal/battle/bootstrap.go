package battle

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/nchavez4/monster-arena-backend/internal/engine"
	"github.com/nchavez4/monster-arena-backend/internal/roster"
)

// PlayerSetup carries everything session bootstrap needs for one side: the
// player's identity, their lobby selection (possibly empty) and their
// resolved roster.
type PlayerSetup struct {
	UserID   int
	Username string
	Selected []int
	Roster   []roster.Monster
}

// BuildState materializes the initial battle state: up to three monsters per
// player with frozen stats, the two-skill kit, full health, zero cooldowns,
// and the speed-sorted turn order. It fails without side effects when either
// roster is empty, so a failed promotion leaves nothing behind.
func BuildState(matchID string, p1, p2 PlayerSetup) (engine.State, error) {
	if len(p1.Roster) == 0 {
		return engine.State{}, fmt.Errorf("player %d: %w", p1.UserID, roster.ErrEmptyRoster)
	}
	if len(p2.Roster) == 0 {
		return engine.State{}, fmt.Errorf("player %d: %w", p2.UserID, roster.ErrEmptyRoster)
	}

	g1 := buildGroup(p1)
	g2 := buildGroup(p2)

	s := engine.State{
		MatchID:             matchID,
		Player1:             g1,
		Player2:             g2,
		Phase:               engine.PhaseCombat,
		TurnOrder:           engine.BuildTurnOrder(g1, g2),
		CurrentTurn:         0,
		CurrentMonsterIndex: 0,
	}
	return s, nil
}

func buildGroup(p PlayerSetup) engine.Group {
	picked := p.Roster
	if len(p.Selected) > 0 {
		selected := lo.Filter(p.Roster, func(m roster.Monster, _ int) bool {
			return lo.Contains(p.Selected, m.ID)
		})
		// A selection that resolves to nothing falls back to the default
		// pick rather than failing the whole promotion.
		if len(selected) > 0 {
			picked = selected
		}
	}
	if len(picked) > 3 {
		picked = picked[:3]
	}

	monsters := make([]engine.Monster, 0, len(picked))
	for _, m := range picked {
		monsters = append(monsters, engine.Monster{
			ID:         m.ID,
			PlayerID:   p.UserID,
			TemplateID: m.TemplateID,
			Name:       m.Name,
			Level:      m.Level,
			MaxHP:      m.MaxHP,
			CurrentHP:  m.MaxHP,
			Strength:   m.Strength,
			Speed:      m.Speed,
			Ability:    m.Ability,
			Element:    m.Element,
			Rarity:     m.Rarity,
			Skills:     engine.SkillKit(m.Strength, m.Element),
			Cooldowns:  make(map[int]int),
		})
	}
	return engine.Group{PlayerID: p.UserID, Username: p.Username, Monsters: monsters}
}
