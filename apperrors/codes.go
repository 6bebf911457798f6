package apperrors

type Code string

const (
	CodeUnknown                Code = "UNKNOWN"
	CodeInvalidParameters      Code = "INVALID_PARAMETERS"
	CodeNoActiveSession        Code = "NO_ACTIVE_SESSION"
	CodeDecryptionFailed       Code = "DECRYPTION_FAILED"
	CodeNotAuthenticated       Code = "NOT_AUTHENTICATED"
	CodeNotFound               Code = "NOT_FOUND"
	CodeAlreadyExists          Code = "ALREADY_EXISTS"
	CodePersistenceUnavailable Code = "PERSISTENCE_UNAVAILABLE"
	CodeInternal               Code = "INTERNAL"
)
