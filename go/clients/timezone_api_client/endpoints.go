package timezone_api_client

const (
	// Base URL
	BaseURL = "https://worldtimeapi.org/api"

	// API Endpoints
	TimezonesEndpoint = "/timezone"

	// Headers
	AcceptHeader    = "Accept"
	ContentTypeJSON = "application/json"
)
