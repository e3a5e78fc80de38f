package protocol

import "fmt"

// ErrorKind buckets a ServerError by how the server reacts to it.
type ErrorKind int

const (
	// KindProtocol covers malformed traffic: version mismatches, unknown
	// packet types, and payloads that fail to decode. Connection-scoped.
	KindProtocol ErrorKind = iota
	// KindSession covers lookups that race with disconnects: missing users,
	// games, player data, or opponents.
	KindSession
	// KindValidation covers well-formed requests the game rules reject.
	// Request-scoped, no side effects.
	KindValidation
)

// Error codes carried in ErrorNotification packets.
const (
	CodeVersionMismatch   uint16 = 0x0001
	CodeUnknownPacketType uint16 = 0x0002
	CodeDecodeFailure     uint16 = 0x0003
	CodeHandlerNotFound   uint16 = 0x0004
	CodeMalformedHeader   uint16 = 0x0005

	CodeUserNotFound     uint16 = 0x0101
	CodeGameNotFound     uint16 = 0x0102
	CodePlayerNotFound   uint16 = 0x0103
	CodeOpponentNotFound uint16 = 0x0104

	CodeInsufficientMineral uint16 = 0x0201
	CodeInvalidAssetID      uint16 = 0x0202
	CodeCooldownActive      uint16 = 0x0203
	CodeUnitNotFound        uint16 = 0x0204
	CodeWrongTeamTarget     uint16 = 0x0205
	CodeDuplicateCheckpoint uint16 = 0x0206
	CodeCheckpointNotHeld   uint16 = 0x0207
	CodeGameNotStarted      uint16 = 0x0208
)

// ServerError is the typed error answered with an ErrorNotification packet.
// Errors without a ServerError in their chain are logged but not reported to
// the client.
type ServerError struct {
	Kind    ErrorKind
	Code    uint16
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("[0x%04x] %s", e.Code, e.Message)
}

func NewProtocolError(code uint16, format string, args ...interface{}) *ServerError {
	return &ServerError{Kind: KindProtocol, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewSessionError(code uint16, format string, args ...interface{}) *ServerError {
	return &ServerError{Kind: KindSession, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(code uint16, format string, args ...interface{}) *ServerError {
	return &ServerError{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}
