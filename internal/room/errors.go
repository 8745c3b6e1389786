package room

// Error is a caller-attributable failure. The gateway surfaces it as a
// unicast error event to the offending connection only; it is never
// broadcast. Codes are part of the wire contract.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrInvalidInput        = &Error{Code: "invalid_input", Message: "display name is required"}
	ErrRoomNotFound        = &Error{Code: "room_not_found", Message: "room not found or no longer exists"}
	ErrRoomNotJoinable     = &Error{Code: "room_not_joinable", Message: "room has already started or completed"}
	ErrNameTaken           = &Error{Code: "name_taken", Message: "display name already taken in this room"}
	ErrNotHost             = &Error{Code: "not_authorized", Message: "only the host can start the draft"}
	ErrAlreadyStarted      = &Error{Code: "invalid_state", Message: "draft has already started or completed"}
	ErrInsufficientMembers = &Error{Code: "insufficient_members", Message: "need at least 2 members to start"}
	ErrDraftNotActive      = &Error{Code: "invalid_state", Message: "draft is not active"}
	ErrNotInRoom           = &Error{Code: "not_found", Message: "you are not a member of this room"}
)
