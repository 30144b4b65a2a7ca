package httpclient_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomstudio/loomctl/internal/httpclient"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		url           string
		message       string
		expectedError string
	}{
		{
			name:          "create HTTPError with all fields",
			statusCode:    404,
			url:           "http://example.com",
			message:       "Not Found",
			expectedError: "HTTP 404 for URL http://example.com: Not Found",
		},
		{
			name:          "format error message correctly for 500",
			statusCode:    500,
			url:           "http://api.example.com/v1/data",
			message:       "Internal Server Error",
			expectedError: "HTTP 500 for URL http://api.example.com/v1/data: Internal Server Error",
		},
		{
			name:          "handle empty message",
			statusCode:    404,
			url:           "http://example.com",
			message:       "",
			expectedError: "HTTP 404 for URL http://example.com: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := httpclient.NewHTTPError(tt.statusCode, tt.url, tt.message)

			require.Error(t, err)
			assert.Equal(t, tt.expectedError, err.Error())
		})
	}
}

func TestHTTPError_Retriable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		retriable  bool
	}{
		{
			name:       "500 is retriable",
			statusCode: 500,
			retriable:  true,
		},
		{
			name:       "503 is retriable",
			statusCode: 503,
			retriable:  true,
		},
		{
			name:       "429 is retriable",
			statusCode: 429,
			retriable:  true,
		},
		{
			name:       "408 is retriable",
			statusCode: 408,
			retriable:  true,
		},
		{
			name:       "404 is not retriable",
			statusCode: 404,
			retriable:  false,
		},
		{
			name:       "401 is not retriable",
			statusCode: 401,
			retriable:  false,
		},
		{
			name:       "400 is not retriable",
			statusCode: 400,
			retriable:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			httpErr := &httpclient.HTTPError{StatusCode: tt.statusCode}
			assert.Equal(t, tt.retriable, httpErr.Retriable())
		})
	}
}
