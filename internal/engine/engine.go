// Package engine holds the pure battle rules: no I/O, no timers, no locks.
// The battle session actor feeds it commands and applies the states it
// returns; randomness comes in through an injected *rand.Rand so resolution
// is reproducible under a fixed seed.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var ErrBattleFinished = errors.New("battle already finished")
var ErrNotYourTurn = errors.New("not your turn or invalid monster")
var ErrUnknownSkill = errors.New("unknown skill")
var ErrSkillOnCooldown = errors.New("skill on cooldown")
var ErrInvalidTarget = errors.New("invalid target")
var ErrNoLivingMonsters = errors.New("no living monsters in turn order")

// Command is one skill use, either submitted by the acting monster's owner
// or synthesized by the timeout fallback (Auto).
type Command struct {
	PlayerID  int
	MonsterID int
	SkillID   int
	TargetID  int
	Auto      bool
}

// Apply resolves one skill use against the current turn-order entry. It
// returns the combat events produced and the updated state; on a rule
// violation the state comes back unchanged. Apply never advances the cursor —
// that is BeginTurn/AdvanceCursor's job, driven by the session's pacing.
func Apply(s State, cmd Command, rng *rand.Rand) ([]CombatEvent, State, error) {
	if s.Phase == PhaseFinished {
		return nil, s, ErrBattleFinished
	}
	if len(s.TurnOrder) == 0 {
		return nil, s, ErrNoLivingMonsters
	}

	acting := s.TurnOrder[s.CurrentMonsterIndex]
	if cmd.MonsterID != acting.ID {
		return nil, s, ErrNotYourTurn
	}
	if !cmd.Auto && !ownerGroup(s, cmd.PlayerID).owns(acting.ID) {
		return nil, s, ErrNotYourTurn
	}

	skill, ok := acting.SkillByID(cmd.SkillID)
	if !ok {
		return nil, s, ErrUnknownSkill
	}
	if !cmd.Auto && acting.Cooldowns[skill.ID] > 0 {
		return nil, s, ErrSkillOnCooldown
	}

	target, ok := findMonster(s, cmd.TargetID)
	if !ok || !target.Alive() || target.PlayerID == acting.PlayerID {
		return nil, s, ErrInvalidTarget
	}

	damage := RollDamage(rng, skill.Damage)
	target.CurrentHP = max(0, target.CurrentHP-damage)

	attacker := acting.clone()
	if skill.Cooldown > 0 {
		attacker.Cooldowns[skill.ID] = skill.Cooldown
	}

	desc := fmt.Sprintf("%s used %s on %s for %d damage!",
		attacker.Name, skill.Name, target.Name, damage)
	if !target.Alive() {
		desc += fmt.Sprintf(" %s is defeated!", target.Name)
	}

	now := time.Now().UnixMilli()
	events := []CombatEvent{{
		ID:           now,
		Type:         "skill_used",
		AttackerID:   attacker.ID,
		TargetID:     target.ID,
		SkillID:      skill.ID,
		Damage:       damage,
		Description:  desc,
		IsAutoAction: cmd.Auto,
		Timestamp:    now,
	}}

	newState := s
	writeBack(&newState, attacker)
	writeBack(&newState, target)

	if winner, done := WinnerID(newState); done {
		newState.Phase = PhaseFinished
		newState.Winner = winner
	}
	return events, newState, nil
}

// RollDamage draws the canonical ±20% variance: floor(base × U[0.8, 1.2)).
func RollDamage(rng *rand.Rand, base int) int {
	factor := 0.8 + rng.Float64()*0.4
	return int(float64(base) * factor)
}

// BeginTurn positions the cursor on the next living monster (starting from
// the current index), bumps the turn counter, ticks down the acting monster's
// cooldowns and stamps the turn start time. ErrNoLivingMonsters means the
// turn order is exhausted and the caller must terminate the battle.
func BeginTurn(s State) (State, Monster, error) {
	n := len(s.TurnOrder)
	if n == 0 {
		return s, Monster{}, ErrNoLivingMonsters
	}
	idx := s.CurrentMonsterIndex
	for attempts := 0; attempts < n; attempts++ {
		if s.TurnOrder[idx].Alive() {
			s.CurrentMonsterIndex = idx
			s.CurrentTurn++
			s.TurnStartTime = time.Now().UnixMilli()

			acting := s.TurnOrder[idx].clone()
			for id, cd := range acting.Cooldowns {
				if cd > 0 {
					acting.Cooldowns[id] = cd - 1
				}
			}
			writeBack(&s, acting)
			return s, acting, nil
		}
		idx = (idx + 1) % n
	}
	return s, Monster{}, ErrNoLivingMonsters
}

// AdvanceCursor moves to the next turn-order slot. Skipping dead entries is
// left to BeginTurn so the skip logic lives in exactly one place.
func AdvanceCursor(s State) State {
	if len(s.TurnOrder) == 0 {
		return s
	}
	s.CurrentMonsterIndex = (s.CurrentMonsterIndex + 1) % len(s.TurnOrder)
	return s
}

// AutoCommand builds the timeout fallback action for the acting monster: the
// always-available basic attack against a uniformly random living enemy.
// ok is false when no living enemy exists and the turn should simply pass.
func AutoCommand(s State, rng *rand.Rand) (Command, bool) {
	if len(s.TurnOrder) == 0 {
		return Command{}, false
	}
	acting := s.TurnOrder[s.CurrentMonsterIndex]
	enemies := LivingEnemies(s, acting.PlayerID)
	if len(enemies) == 0 {
		return Command{}, false
	}
	target := enemies[rng.Intn(len(enemies))]
	return Command{
		PlayerID:  acting.PlayerID,
		MonsterID: acting.ID,
		SkillID:   SkillBasicAttack,
		TargetID:  target.ID,
		Auto:      true,
	}, true
}

// WinnerID reports the winning player once either group has no living
// monsters left. A battle between two wiped groups cannot happen through
// Apply (one resolution kills at most one side), but the zero value keeps
// the defensive path honest.
func WinnerID(s State) (int, bool) {
	p1 := s.Player1.HasLiving()
	p2 := s.Player2.HasLiving()
	switch {
	case p1 && p2:
		return 0, false
	case p1:
		return s.Player1.PlayerID, true
	case p2:
		return s.Player2.PlayerID, true
	default:
		return 0, true
	}
}
