package workflow

import "encoding/json"

// RunRequest represents the request body for the run workflow endpoint
type RunRequest struct {
	AppID     string            `json:"appId"`
	Variables map[string]string `json:"variables"`
	Workflow  string            `json:"workflow"`
}

// RunResponse represents the response from the run workflow endpoint.
// Both fields stay raw because the service does not promise their types.
type RunResponse struct {
	Success json.RawMessage `json:"success"`
	Result  json.RawMessage `json:"result"`
}
