package types

// GenerateRequest is the payload accepted by POST /generate and by the first
// message of a /ws/generate session.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
}

// GenerateResponse is returned by POST /generate once generation has finished.
type GenerateResponse struct {
	// Full generated text.
	// example: Waves fold into foam...
	Response string `json:"response" example:"Waves fold into foam..."`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Names of the models installed on the model endpoint.
	Models []string `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// LogEntry is one line of the request log.
// Fields are append-only; bump the log format if their meaning changes.
type LogEntry struct {
	// Seconds since the Unix epoch, with sub-second precision.
	TS       float64 `json:"ts"`
	Prompt   string  `json:"prompt"`
	Response string  `json:"response"`
}
