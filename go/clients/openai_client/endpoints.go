package openai_client

const (
	// Base URL - override with OPENAI_BASE_URL for compatible gateways
	BaseURL = "https://api.openai.com/v1"

	// Paths
	chatCompletionsPath = "/chat/completions"

	// Headers
	AuthHeader      = "Authorization"
	JsonHeader      = "Content-Type"
	JsonContentType = "application/json"

	DefaultModel = "gpt-4o"
)
