package http

// HealthResponse is the response body for GET /api/health.
type HealthResponse struct {
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	Version           string `json:"version"`
	ServiceConfigured bool   `json:"service_configured"`
	// OpenAIConfigured is kept for clients of the original API.
	OpenAIConfigured bool   `json:"openai_configured"`
	Provider         string `json:"provider"`
	Environment      string `json:"environment"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
