package roster

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type MonsterTemplate struct {
	ID           int    `gorm:"primaryKey"`
	Name         string
	BaseHP       int    `gorm:"column:base_hp"`
	BaseStrength int
	BaseSpeed    int
	BaseAbility  int
	Rarity       string
	Element      string
}

func (MonsterTemplate) TableName() string { return "monster_templates" }

type UserMonster struct {
	ID         int `gorm:"primaryKey"`
	UserID     int
	TemplateID int
	Nickname   *string
	Level      int
	Experience int
	HP         int `gorm:"column:hp"`
	Strength   int
	Speed      int
	Ability    int
	IsFavorite bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Template   MonsterTemplate `gorm:"foreignKey:TemplateID"`
}

func (UserMonster) TableName() string { return "user_monsters" }

type EquipmentTemplate struct {
	ID            int `gorm:"primaryKey"`
	Name          string
	HPBonus       int `gorm:"column:hp_bonus"`
	StrengthBonus int
	SpeedBonus    int
	AbilityBonus  int
}

func (EquipmentTemplate) TableName() string { return "equipment_templates" }

type UserEquipment struct {
	ID                  int `gorm:"primaryKey"`
	UserID              int
	EquipmentTemplateID int
	EquippedMonsterID   *int
	EnhancementLevel    int
	Template            EquipmentTemplate `gorm:"foreignKey:EquipmentTemplateID"`
}

func (UserEquipment) TableName() string { return "user_equipment" }

// DBProvider resolves rosters from postgres through gorm.
type DBProvider struct {
	db *gorm.DB
}

func NewDBProvider(db *gorm.DB) *DBProvider { return &DBProvider{db: db} }

func (p *DBProvider) CombatRoster(ctx context.Context, userID int) ([]Monster, error) {
	var rows []UserMonster
	err := p.db.WithContext(ctx).
		Preload("Template").
		Where("user_id = ?", userID).
		Order("is_favorite DESC, level DESC, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load monsters for user %d: %w", userID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, ErrEmptyRoster)
	}

	var gear []UserEquipment
	err = p.db.WithContext(ctx).
		Preload("Template").
		Where("user_id = ? AND equipped_monster_id IS NOT NULL", userID).
		Find(&gear).Error
	if err != nil {
		return nil, fmt.Errorf("load equipment for user %d: %w", userID, err)
	}

	bonuses := make(map[int]EquipmentTemplate)
	for _, g := range gear {
		b := bonuses[*g.EquippedMonsterID]
		b.HPBonus += g.Template.HPBonus
		b.StrengthBonus += g.Template.StrengthBonus
		b.SpeedBonus += g.Template.SpeedBonus
		b.AbilityBonus += g.Template.AbilityBonus
		bonuses[*g.EquippedMonsterID] = b
	}

	monsters := make([]Monster, 0, len(rows))
	for _, row := range rows {
		name := row.Template.Name
		if row.Nickname != nil && *row.Nickname != "" {
			name = *row.Nickname
		}
		bonus := bonuses[row.ID]
		monsters = append(monsters, Monster{
			ID:         row.ID,
			TemplateID: row.TemplateID,
			Name:       name,
			Level:      row.Level,
			MaxHP:      row.HP + bonus.HPBonus,
			Strength:   row.Strength + bonus.StrengthBonus,
			Speed:      row.Speed + bonus.SpeedBonus,
			Ability:    row.Ability + bonus.AbilityBonus,
			Element:    row.Template.Element,
			Rarity:     row.Template.Rarity,
		})
	}
	return monsters, nil
}
