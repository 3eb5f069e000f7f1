package roster

import (
	"errors"
	"fmt"
)

// Op names a roster operation for error reporting and metrics.
type Op string

const (
	OpList          Op = "list"
	OpCreate        Op = "create"
	OpUpdate        Op = "update"
	OpRemove        Op = "remove"
	OpFetchArtifact Op = "fetch_artifact"
)

var ErrClosed = errors.New("roster store is closed")

var errMissingID = errors.New("response is missing participant id")

var genericMessages = map[Op]string{
	OpList:          "Failed to load participants",
	OpCreate:        "Failed to create participant",
	OpUpdate:        "Failed to update participant",
	OpRemove:        "Failed to delete participant",
	OpFetchArtifact: "Failed to download PDF",
}

// GenericMessage is the notification text used when the authority supplied
// no message of its own.
func GenericMessage(op Op) string {
	if msg, ok := genericMessages[op]; ok {
		return msg
	}
	return "Request failed"
}

// ValidationError is a local precondition failure. It never reaches the
// authority.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NotFoundError means the operation referenced an id absent from the local
// collection.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("participant %q not found", e.ID)
}

// RemoteError means the authority was reached and rejected the request.
// Message is the authority's structured message, empty when none was sent.
type RemoteError struct {
	Op      Op
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = GenericMessage(e.Op)
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, msg, e.Status)
}

// FetchError is a transport or decoding failure with no structured message.
type FetchError struct {
	Op  Op
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Message returns user-facing notification text for err.
func Message(op Op, err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return "Participant not found"
	}
	var remote *RemoteError
	if errors.As(err, &remote) && remote.Message != "" {
		return remote.Message
	}
	if errors.Is(err, ErrClosed) {
		return "Roster is not available"
	}
	return GenericMessage(op)
}

// normalize keeps the taxonomy closed: anything a Remote returns that is not
// already classified is treated as a transport failure.
func normalize(op Op, err error) error {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return err
	}
	var fetch *FetchError
	if errors.As(err, &fetch) {
		return err
	}
	return &FetchError{Op: op, Err: err}
}
