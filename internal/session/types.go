package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/rules"
)

// BotPlayerID is the reserved black player id of games against the AI.
const BotPlayerID = "BOT_PLAYER"

var (
	ErrNotFound           = errors.New("not found")
	ErrCorrupt            = errors.New("corrupt stored value")
	ErrInvalidTimeControl = errors.New("invalid time control")
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type Reason string

const (
	ReasonNone      Reason = ""
	ReasonCheckmate Reason = "checkmate"
	ReasonTimeout   Reason = "timeout"
	ReasonResign    Reason = "resign"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty falls back to Easy for anything unrecognised.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case Medium:
		return Medium
	case Hard:
		return Hard
	default:
		return Easy
	}
}

// TimeControl is either a per-side budget in minutes or a bot game tag.
// Its text form is "10" or "bot:hard".
type TimeControl struct {
	Minutes int
	Bot     Difficulty
}

func Minutes(n int) TimeControl { return TimeControl{Minutes: n} }

func BotGame(d Difficulty, minutes int) TimeControl { return TimeControl{Minutes: minutes, Bot: d} }

func (tc TimeControl) IsBot() bool { return tc.Bot != "" }

func (tc TimeControl) String() string {
	if tc.IsBot() {
		return "bot:" + string(tc.Bot)
	}
	return strconv.Itoa(tc.Minutes)
}

// ParseTimeControl reads the text form. Bot games carry no minutes in text
// form, so defaultBotMinutes is used for them.
func ParseTimeControl(s string, defaultBotMinutes int) (TimeControl, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "bot:"); ok {
		return BotGame(ParseDifficulty(rest), defaultBotMinutes), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return TimeControl{}, fmt.Errorf("%w: %q", ErrInvalidTimeControl, s)
	}
	return Minutes(n), nil
}

// GameSession is the authoritative state of one game.
type GameSession struct {
	ID          string
	WhiteID     string
	BlackID     string
	FEN         string
	LastMove    *rules.Move
	Moves       []string
	WhiteTime   float64
	BlackTime   float64
	LastMoveAt  time.Time
	TimeControl TimeControl
	Status      Status
	Winner      rules.Color
	Reason      Reason
	CreatedAt   time.Time
}

func (s *GameSession) IsBotGame() bool { return s.BlackID == BotPlayerID }

func (s *GameSession) Ended() bool { return s.Status == StatusEnded }

// ColorOf returns the side playerID plays, or false for outsiders.
func (s *GameSession) ColorOf(playerID string) (rules.Color, bool) {
	switch playerID {
	case s.WhiteID:
		return rules.White, true
	case s.BlackID:
		return rules.Black, true
	default:
		return "", false
	}
}

func (s *GameSession) PlayerOf(c rules.Color) string {
	if c == rules.Black {
		return s.BlackID
	}
	return s.WhiteID
}

func (s *GameSession) Times() clock.Times {
	return clock.Times{White: s.WhiteTime, Black: s.BlackTime}
}

func (s *GameSession) SetTimes(t clock.Times) {
	s.WhiteTime, s.BlackTime = t.White, t.Black
}

// End marks the session finished.
func (s *GameSession) End(winner rules.Color, reason Reason) {
	s.Status = StatusEnded
	s.Winner = winner
	s.Reason = reason
}

// Clone returns a deep copy.
func (s *GameSession) Clone() *GameSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastMove != nil {
		lm := *s.LastMove
		c.LastMove = &lm
	}
	c.Moves = append([]string(nil), s.Moves...)
	return &c
}

// record is the stored JSON shape of a GameSession.
type record struct {
	ID          string      `json:"id"`
	White       string      `json:"white"`
	Black       string      `json:"black"`
	FEN         string      `json:"fen"`
	Type        string      `json:"type"`
	LastMove    *rules.Move `json:"lastMove"`
	Moves       []string    `json:"moves,omitempty"`
	WhiteTime   float64     `json:"whiteTime"`
	BlackTime   float64     `json:"blackTime"`
	LastMoveAt  int64       `json:"lastMoveTimestamp"`
	Status      Status      `json:"status,omitempty"`
	Winner      rules.Color `json:"winner,omitempty"`
	Reason      Reason      `json:"reason,omitempty"`
	CreatedAtMS int64       `json:"createdAt,omitempty"`
	BotMinutes  int         `json:"botMinutes,omitempty"`
}

func encodeSession(s *GameSession) (string, error) {
	if err := validate(s); err != nil {
		return "", err
	}
	rec := record{
		ID:          s.ID,
		White:       s.WhiteID,
		Black:       s.BlackID,
		FEN:         s.FEN,
		Type:        s.TimeControl.String(),
		LastMove:    s.LastMove,
		Moves:       s.Moves,
		WhiteTime:   s.WhiteTime,
		BlackTime:   s.BlackTime,
		LastMoveAt:  s.LastMoveAt.UnixMilli(),
		Status:      s.Status,
		Winner:      s.Winner,
		Reason:      s.Reason,
		CreatedAtMS: s.CreatedAt.UnixMilli(),
	}
	if s.TimeControl.IsBot() {
		rec.BotMinutes = s.TimeControl.Minutes
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	return string(raw), nil
}

func decodeSession(raw string) (*GameSession, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	tc, err := ParseTimeControl(rec.Type, rec.BotMinutes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	s := &GameSession{
		ID:          rec.ID,
		WhiteID:     rec.White,
		BlackID:     rec.Black,
		FEN:         rec.FEN,
		LastMove:    rec.LastMove,
		Moves:       rec.Moves,
		WhiteTime:   rec.WhiteTime,
		BlackTime:   rec.BlackTime,
		LastMoveAt:  time.UnixMilli(rec.LastMoveAt),
		TimeControl: tc,
		Status:      rec.Status,
		Winner:      rec.Winner,
		Reason:      rec.Reason,
		CreatedAt:   time.UnixMilli(rec.CreatedAtMS),
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	if err := validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

func validate(s *GameSession) error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil session", ErrCorrupt)
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("%w: missing id", ErrCorrupt)
	case s.WhiteID == "" || s.BlackID == "":
		return fmt.Errorf("%w: missing players", ErrCorrupt)
	case strings.TrimSpace(s.FEN) == "":
		return fmt.Errorf("%w: missing fen", ErrCorrupt)
	case s.WhiteTime < 0 || s.BlackTime < 0:
		return fmt.Errorf("%w: negative clock", ErrCorrupt)
	case s.Status != StatusActive && s.Status != StatusEnded:
		return fmt.Errorf("%w: status %q", ErrCorrupt, s.Status)
	case s.Winner != "" && !s.Winner.Valid():
		return fmt.Errorf("%w: winner %q", ErrCorrupt, s.Winner)
	}
	return nil
}
