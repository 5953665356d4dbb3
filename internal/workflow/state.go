// Package workflow arbitrates what happens to a release archive once its
// presence is known: reuse it, download it again, inspect where it comes
// from, or give up. Each Machine serves one session and accepts exactly
// one decision.
package workflow

// State is a node of the decision workflow.
type State string

const (
	StateIdle              State = "Idle"
	StateCheckingRemote    State = "CheckingRemote"
	StateCheckingLocal     State = "CheckingLocal"
	StateAlreadyDownloaded State = "AlreadyDownloaded"
	StateNotFound          State = "NotFound"
	StateInspectingDetails State = "InspectingDetails"
	StateProceeding        State = "Proceeding"
	StateRedownloading     State = "Redownloading"
	StateDownloading       State = "Downloading"
	StateAborted           State = "Aborted"
	StateFailed            State = "Failed"
)

// Terminal reports whether no further action is accepted in s.
func (s State) Terminal() bool {
	switch s {
	case StateProceeding, StateAborted, StateFailed:
		return true
	default:
		return false
	}
}

// InFlight reports whether s is running I/O that Abort cancels.
func (s State) InFlight() bool {
	switch s {
	case StateCheckingRemote, StateCheckingLocal, StateRedownloading, StateDownloading:
		return true
	default:
		return false
	}
}

// Action is a request made to a Machine.
type Action string

const (
	ActionCheck        Action = "check"
	ActionProceed      Action = "proceed"
	ActionRedownload   Action = "redownload"
	ActionShowDetails  Action = "show-details"
	ActionCloseDetails Action = "close-details"
	ActionDownload     Action = "download"
	ActionAbort        Action = "abort"
)

// Decision is the single choice a session makes about its archive.
type Decision string

const (
	DecisionNone              Decision = ""
	DecisionProceedWithCached Decision = "ProceedWithCached"
	DecisionRedownload        Decision = "Redownload"
	DecisionDownload          Decision = "Download"
	DecisionAbort             Decision = "Abort"
)

// ParseAction maps a CLI value such as "proceed" to an Action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionProceed, ActionRedownload, ActionShowDetails, ActionCloseDetails, ActionDownload, ActionAbort:
		return a, true
	default:
		return "", false
	}
}
