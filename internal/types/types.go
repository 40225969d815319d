package types

import "github.com/nchavez4/monster-arena-backend/internal/engine"

// Client -> Server
const (
	MsgJoinLobby      = "join_lobby"
	MsgSelectMonsters = "select_monsters"
	MsgUseSkill       = "use_skill"
	MsgLeaveLobby     = "leave_lobby"
)

// Server -> Client
const (
	MsgLobbyJoined      = "lobby_joined"
	MsgLobbyUpdate      = "lobby_update"
	MsgLobbyMessage     = "lobby_message"
	MsgLobbyLeft        = "lobby_left"
	MsgMonstersSelected = "monsters_selected"
	MsgBattleStart      = "battle_start"
	MsgTurnStart        = "turn_start"
	MsgBattleUpdate     = "battle_update"
	MsgBattleEnd        = "battle_end"
	MsgError            = "error"
)

type ClientMessage struct {
	Type       string `json:"type"`
	MonsterIDs []int  `json:"monsterIds,omitempty"`
	SkillID    int    `json:"skillId,omitempty"`
	TargetID   int    `json:"targetId,omitempty"`
	MonsterID  int    `json:"monsterId,omitempty"`
}

type LobbyPlayer struct {
	UserID           int    `json:"userId"`
	Username         string `json:"username"`
	JoinedAt         int64  `json:"joinedAt"`
	Ready            bool   `json:"ready"`
	MonstersSelected bool   `json:"monstersSelected"`
}

type LobbyData struct {
	Players   []LobbyPlayer `json:"players"`
	Countdown int           `json:"countdown"`
	CanStart  bool          `json:"canStart"`
}

// ServerMessage is the single outbound envelope; unused fields are omitted
// per message type, mirroring the wire shapes clients already consume.
type ServerMessage struct {
	Type             string               `json:"type"`
	Message          string               `json:"message,omitempty"`
	LobbyData        *LobbyData           `json:"lobbyData,omitempty"`
	SelectedMonsters []int                `json:"selectedMonsters,omitempty"`
	BattleState      *engine.State        `json:"battleState,omitempty"`
	CurrentMonster   *engine.Monster      `json:"currentMonster,omitempty"`
	TurnDeadline     int64                `json:"turnDeadline,omitempty"`
	Events           []engine.CombatEvent `json:"events,omitempty"`
	WinnerID         int                  `json:"winnerId,omitempty"`
	WinnerUsername   string               `json:"winnerUsername,omitempty"`
}

func Error(msg string) ServerMessage {
	return ServerMessage{Type: MsgError, Message: msg}
}
