package services

// Notifier fans change notifications out to subscribed clients. Payloads are
// id-only on purpose: attendance data is confidential per viewer and must be
// refetched through the filtered read paths.
type Notifier interface {
	TeamUpdated(teamID int)
	SessionUpdated(teamID, sessionID int)
	SessionDeleted(teamID, sessionID int)
}

// NopNotifier is used where no realtime hub is wired (tests, the digest job).
type NopNotifier struct{}

func (NopNotifier) TeamUpdated(int)         {}
func (NopNotifier) SessionUpdated(int, int) {}
func (NopNotifier) SessionDeleted(int, int) {}
