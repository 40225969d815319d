// Package roster resolves a player's combat-ready monsters. The battle
// coordinator only consumes the Provider interface; the gorm implementation
// reads the game's postgres schema and folds equipped gear into the stats
// that get frozen at battle start.
package roster

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyRoster = errors.New("player has no combat-ready monsters")

// Monster is a resolved roster entry with effective stats
// (base + equipment bonuses already applied).
type Monster struct {
	ID         int
	TemplateID int
	Name       string
	Level      int
	MaxHP      int
	Strength   int
	Speed      int
	Ability    int
	Element    string
	Rarity     string
}

type Provider interface {
	// CombatRoster returns the player's full roster, favorites and higher
	// levels first. An unknown user or an empty roster is ErrEmptyRoster.
	CombatRoster(ctx context.Context, userID int) ([]Monster, error)
}

// StaticProvider serves rosters from memory. It backs tests and runs the
// server without a database.
type StaticProvider struct {
	rosters  map[int][]Monster
	fallback []Monster
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{rosters: make(map[int][]Monster)}
}

func (p *StaticProvider) Seed(userID int, monsters []Monster) {
	p.rosters[userID] = append([]Monster(nil), monsters...)
}

// SeedDefault sets the roster served to users without a seeded entry, so
// every joiner is battle-ready when no database backs the provider. Without
// it an unknown user resolves to ErrEmptyRoster.
func (p *StaticProvider) SeedDefault(monsters []Monster) {
	p.fallback = append([]Monster(nil), monsters...)
}

func (p *StaticProvider) CombatRoster(_ context.Context, userID int) ([]Monster, error) {
	monsters, ok := p.rosters[userID]
	if !ok || len(monsters) == 0 {
		if len(p.fallback) == 0 {
			return nil, fmt.Errorf("user %d: %w", userID, ErrEmptyRoster)
		}
		// Battle rules key on monster id alone, so fallback copies get
		// ids namespaced per user to keep the two sides distinct.
		monsters = append([]Monster(nil), p.fallback...)
		for i := range monsters {
			monsters[i].ID = userID*1000 + p.fallback[i].ID
		}
		return monsters, nil
	}
	return append([]Monster(nil), monsters...), nil
}

// StarterRoster is the kit served to every player when the server runs
// without a database.
func StarterRoster() []Monster {
	return []Monster{
		{ID: 1, TemplateID: 1, Name: "Emberling", Level: 5,
			MaxHP: 120, Strength: 30, Speed: 70, Element: "fire", Rarity: "common"},
		{ID: 2, TemplateID: 2, Name: "Tidepup", Level: 5,
			MaxHP: 150, Strength: 25, Speed: 55, Element: "water", Rarity: "common"},
		{ID: 3, TemplateID: 3, Name: "Thornhare", Level: 5,
			MaxHP: 135, Strength: 28, Speed: 62, Element: "grass", Rarity: "common"},
	}
}
