package match

import "fmt"

// ErrorKind identifies why an action was rejected. Kinds are comparable
// sentinels, so errors.Is(err, ErrNotYourTurn) works on any ActionError.
type ErrorKind string

func (k ErrorKind) Error() string { return string(k) }

const (
	ErrWrongPhase         ErrorKind = "wrong_phase"
	ErrUnknownPlayer      ErrorKind = "unknown_player"
	ErrInvalidHero        ErrorKind = "invalid_hero"
	ErrHeroNotUnlocked    ErrorKind = "hero_not_unlocked"
	ErrTeamFull           ErrorKind = "team_full"
	ErrDuplicateHero      ErrorKind = "duplicate_hero"
	ErrIncompleteTeam     ErrorKind = "incomplete_team"
	ErrNotYourTurn        ErrorKind = "not_your_turn"
	ErrUnknownHero        ErrorKind = "unknown_hero"
	ErrUnitDefeated       ErrorKind = "unit_defeated"
	ErrUnitStunned        ErrorKind = "unit_stunned"
	ErrUnknownSkill       ErrorKind = "unknown_skill"
	ErrSkillOnCooldown    ErrorKind = "skill_on_cooldown"
	ErrInsufficientEnergy ErrorKind = "insufficient_energy"
	ErrInvalidTarget      ErrorKind = "invalid_target"
	ErrInvalidPosition    ErrorKind = "invalid_position"
	ErrAlreadyInPosition  ErrorKind = "already_in_position"
)

// ActionError is a validation failure returned only to the acting player.
// It is raised before any state is mutated.
type ActionError struct {
	Kind    ErrorKind
	Message string
}

func (e *ActionError) Error() string { return e.Message }

func (e *ActionError) Unwrap() error { return e.Kind }

func reject(kind ErrorKind, format string, args ...any) *ActionError {
	return &ActionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
