package timezone_api_client

import (
	"github.com/mcdev12/tzrooms/go/clients"
)

type TimezoneApiClient struct {
	*clients.BaseClient
}

func NewTimezoneApiClient(baseURL string) *TimezoneApiClient {
	if baseURL == "" {
		baseURL = BaseURL
	}

	client := &TimezoneApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(AcceptHeader, ContentTypeJSON)

	return client
}
