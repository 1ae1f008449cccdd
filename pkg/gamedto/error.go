package gamedto

// Error codes returned to API clients.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeGameNotFound   = "GAME_NOT_FOUND"
	CodeGameNotActive  = "GAME_NOT_ACTIVE"
	CodeNotYourTurn    = "NOT_YOUR_TURN"
	CodeInvalidMove    = "INVALID_MOVE"
	CodeConflict       = "CONFLICT"
	CodeEngineFailure  = "ENGINE_FAILURE"
	CodeInternal       = "INTERNAL"
)

// DomainError is the API-facing error shape. Retryable tells clients
// whether repeating the identical request may succeed.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "game service error"
}
