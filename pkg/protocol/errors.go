package protocol

import "fmt"

// DuplicateWorkerError reports an attempt to register a worker id that
// already exists under case-insensitive comparison. This is a configuration
// error: it is raised immediately and never downgraded to a log line.
type DuplicateWorkerError struct {
	ID       string // the id the caller tried to register
	Existing string // the id already held by the registry
}

func (e *DuplicateWorkerError) Error() string {
	return fmt.Sprintf("worker %q already registered (as %q); ids are case-insensitive", e.ID, e.Existing)
}

// UnknownRecipientError reports a send_message whose `to` resolves to no
// registered worker. Raised to the command source, never silently dropped.
type UnknownRecipientError struct {
	To string
}

func (e *UnknownRecipientError) Error() string {
	return fmt.Sprintf("no registered worker matches recipient %q", e.To)
}

// DeliveryError reports a notification push that failed after bounded
// retries. The message stays queued in the recipient's mailbox; the failure
// is surfaced but not fatal to the system.
type DeliveryError struct {
	WorkerID  string
	MessageID string
	Attempts  int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push to worker %s failed after %d attempts (message %s): %v",
		e.WorkerID, e.Attempts, e.MessageID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
