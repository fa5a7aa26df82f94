package audit

import "time"

// Operation names for state-changing session and two-factor calls.
const (
	OpSessionCreate          = "session.create"
	OpSessionTerminate       = "session.terminate"
	OpSessionTerminateUser   = "session.terminate_user"
	OpSessionTerminateOthers = "session.terminate_others"
	OpSessionTerminateAll    = "session.terminate_all"
	OpSessionSweep           = "session.sweep"

	OpTwoFactorProvision       = "2fa.provision"
	OpTwoFactorConfirm         = "2fa.confirm"
	OpTwoFactorDisable         = "2fa.disable"
	OpTwoFactorBackupCodeUse   = "2fa.backup_code_consume"
	OpTwoFactorBackupCodeRegen = "2fa.backup_codes_regenerate"
)

// Outcomes recorded on an Event.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure" // wrong code, unknown token
	OutcomeDenied  = "denied"  // quota reached, policy refused
	OutcomeError   = "error"   // storage or internal failure
)

// Event is one audit record. Where it is stored is up to the Sink.
type Event struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id"`
	TargetUserID string    `json:"target_user_id"`
	Operation    string    `json:"operation"`
	Outcome      string    `json:"outcome"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
