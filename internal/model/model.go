// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Message is a single chat message relayed to every live connection.
//
// The same struct is the wire frame, the mirror-file record, and the domain
// record: the JSON shape {date, username, message} is shared by all three.
// StorageID exists only after a successful primary-store insert and is never
// serialized.
type Message struct {
	Date      time.Time `json:"date"`     // server-assigned arrival time (UTC)
	Username  string    `json:"username"` // required, otherwise opaque
	Body      string    `json:"message"`  // required, otherwise opaque
	StorageID uuid.UUID `json:"-"`        // primary-store identifier, uuid.Nil until inserted
}

// Valid reports whether the message carries both required fields.
func (m Message) Valid() bool {
	return m.Username != "" && m.Body != ""
}

// Stamped returns a copy with Date set to now (UTC, second precision is
// enough for the protocol but nanoseconds are kept).
func Stamped(username, body string) Message {
	return Message{Date: time.Now().UTC(), Username: username, Body: body}
}
