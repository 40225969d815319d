package engine

import "github.com/samber/lo"

type Phase string

// Battles enter combat directly at bootstrap; there is no preparation phase.
const (
	PhaseCombat   Phase = "combat"
	PhaseFinished Phase = "finished"
)

// Skill ids are fixed per the two-move kit every battle monster carries.
const (
	SkillBasicAttack = 1
	SkillPowerStrike = 2
)

type Skill struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Damage      int    `json:"damage"`
	Cooldown    int    `json:"cooldown"`
	Element     string `json:"element"`
}

// Monster is one combatant's battle snapshot: the template fields are frozen
// at battle start (base stats plus equipment bonuses), the rest is mutable
// combat state.
type Monster struct {
	ID         int         `json:"id"`
	PlayerID   int         `json:"playerId"`
	TemplateID int         `json:"templateId"`
	Name       string      `json:"name"`
	Level      int         `json:"level"`
	MaxHP      int         `json:"maxHp"`
	CurrentHP  int         `json:"currentHp"`
	Strength   int         `json:"strength"`
	Speed      int         `json:"speed"`
	Ability    int         `json:"ability"`
	Element    string      `json:"element"`
	Rarity     string      `json:"rarity"`
	Skills     []Skill     `json:"skills"`
	Cooldowns  map[int]int `json:"skillCooldowns"`
}

func (m Monster) Alive() bool { return m.CurrentHP > 0 }

func (m Monster) SkillByID(id int) (Skill, bool) {
	return lo.Find(m.Skills, func(s Skill) bool { return s.ID == id })
}

// clone deep-copies the mutable parts so that the turn-order view and the
// group views never alias each other's cooldown maps.
func (m Monster) clone() Monster {
	c := m
	c.Cooldowns = make(map[int]int, len(m.Cooldowns))
	for k, v := range m.Cooldowns {
		c.Cooldowns[k] = v
	}
	return c
}

// Group is one player's side of the battle.
type Group struct {
	PlayerID int       `json:"userId"`
	Username string    `json:"username"`
	Monsters []Monster `json:"monsters"`
}

func (g Group) HasLiving() bool {
	return lo.SomeBy(g.Monsters, Monster.Alive)
}

func (g Group) owns(monsterID int) bool {
	return lo.SomeBy(g.Monsters, func(m Monster) bool { return m.ID == monsterID })
}

type State struct {
	MatchID             string    `json:"matchId"`
	Player1             Group     `json:"player1"`
	Player2             Group     `json:"player2"`
	CurrentTurn         int       `json:"currentTurn"`
	TurnStartTime       int64     `json:"turnStartTime"`
	Phase               Phase     `json:"phase"`
	TurnOrder           []Monster `json:"turnOrder"`
	CurrentMonsterIndex int       `json:"currentMonsterIndex"`
	Winner              int       `json:"winner,omitempty"`
}

type CombatEvent struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	AttackerID   int    `json:"attackerId"`
	TargetID     int    `json:"targetId"`
	SkillID      int    `json:"skillId"`
	Damage       int    `json:"damage"`
	Description  string `json:"description"`
	IsAutoAction bool   `json:"isAutoAction"`
	Timestamp    int64  `json:"timestamp"`
}
