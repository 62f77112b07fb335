package state

import (
	"sync"
)

// DialogState is an integer label; every flow owns one hundred-wide range.
type DialogState int

const (
	StateTerminal DialogState = -1
	StateIdle     DialogState = 0

	StateOnbCurrency DialogState = 101
	StateOnbIncome   DialogState = 102
	StateOnbGoal     DialogState = 103

	StateTxnKind     DialogState = 200
	StateIncCategory DialogState = 201
	StateIncAmount   DialogState = 202
	StateIncNote     DialogState = 203

	StateExpCategory DialogState = 301
	StateExpAmount   DialogState = 302
	StateExpNote     DialogState = 303

	StateGoalMenu          DialogState = 400
	StateGoalName          DialogState = 401
	StateGoalAmount        DialogState = 402
	StateGoalDeadline      DialogState = 403
	StateGoalConfirm       DialogState = 404
	StateGoalDepositPick   DialogState = 405
	StateGoalDepositAmount DialogState = 406

	StateBudgetIncome  DialogState = 501
	StateBudgetConfirm DialogState = 502

	StateSettingsRoot          DialogState = 600
	StateSettingsCurrency      DialogState = 601
	StateSettingsLanguage      DialogState = 602
	StateSettingsDeleteConfirm DialogState = 603

	StateAIRoot DialogState = 700

	StatePushTopic   DialogState = 801
	StatePushConfirm DialogState = 802

	StateReportsRoot DialogState = 900
)

// Flow is the range a state belongs to; 0 for idle and terminal.
func (s DialogState) Flow() int {
	if s <= 0 {
		return 0
	}
	return int(s) / 100
}

// The income and expense flows are entered from the shared kind menu.
var predecessors = map[DialogState]DialogState{
	StateOnbIncome:             StateOnbCurrency,
	StateOnbGoal:               StateOnbIncome,
	StateIncCategory:           StateTxnKind,
	StateIncAmount:             StateIncCategory,
	StateIncNote:               StateIncAmount,
	StateExpCategory:           StateTxnKind,
	StateExpAmount:             StateExpCategory,
	StateExpNote:               StateExpAmount,
	StateGoalName:              StateGoalMenu,
	StateGoalAmount:            StateGoalName,
	StateGoalDeadline:          StateGoalAmount,
	StateGoalConfirm:           StateGoalDeadline,
	StateGoalDepositPick:       StateGoalMenu,
	StateGoalDepositAmount:     StateGoalDepositPick,
	StateBudgetConfirm:         StateBudgetIncome,
	StateSettingsCurrency:      StateSettingsRoot,
	StateSettingsLanguage:      StateSettingsRoot,
	StateSettingsDeleteConfirm: StateSettingsRoot,
	StatePushConfirm:           StatePushTopic,
}

// Back is the state "back" leads to; idle when there is no predecessor.
func Back(s DialogState) DialogState {
	if prev, ok := predecessors[s]; ok {
		return prev
	}
	return StateIdle
}

// UserSession is the scratch state of one user.
type UserSession struct {
	UserID   int64
	State    DialogState
	TempData map[string]string
}

// StateManager keeps scratch state in memory; users return to idle after a restart.
type StateManager struct {
	sessions map[int64]*UserSession
	mu       sync.RWMutex
}

func NewStateManager() *StateManager {
	return &StateManager{
		sessions: make(map[int64]*UserSession),
	}
}

func (sm *StateManager) GetState(userID int64) DialogState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if session, exists := sm.sessions[userID]; exists {
		return session.State
	}
	return StateIdle
}

// SetState moves the user to state. Entering another flow drops the partial
// inputs of the previous one; idle and terminal drop the session.
func (sm *StateManager) SetState(userID int64, state DialogState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state == StateIdle || state == StateTerminal {
		delete(sm.sessions, userID)
		return
	}

	session, exists := sm.sessions[userID]
	if !exists || session.State.Flow() != state.Flow() {
		session = &UserSession{UserID: userID, TempData: make(map[string]string)}
		sm.sessions[userID] = session
	}
	session.State = state
}

// SetTempData is a no-op for users without a session.
func (sm *StateManager) SetTempData(userID int64, key, value string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[userID]; exists {
		session.TempData[key] = value
	}
}

func (sm *StateManager) GetTempData(userID int64, key string) string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if session, exists := sm.sessions[userID]; exists {
		return session.TempData[key]
	}
	return ""
}

func (sm *StateManager) ClearSession(userID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.sessions, userID)
}

// Active counts users in the middle of a flow.
func (sm *StateManager) Active() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return len(sm.sessions)
}
