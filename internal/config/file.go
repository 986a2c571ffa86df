package config

import "time"

// Service names the remote endpoints that accept per-endpoint settings.
type Service string

const (
	// ServiceCredentials is the presigned POST issuer.
	ServiceCredentials Service = "credentials"
	// ServiceDetection is the detection API.
	ServiceDetection Service = "detection"
)

// EndpointConfig holds settings for one remote endpoint.
type EndpointConfig struct {
	// URL overrides the built-in endpoint.
	URL string `yaml:"url,omitempty"`

	// Headers are added to every request sent to the endpoint.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// ExportConfig configures the DynamoDB export.
type ExportConfig struct {
	DynamoDBTable string `yaml:"dynamodbTable,omitempty"`
	Region        string `yaml:"region,omitempty"`
}

// File is the structure of the .objdetect configuration file.
type File struct {
	// Defaults apply to every endpoint unless overridden.
	Defaults EndpointConfig `yaml:"defaults,omitempty"`

	Credentials EndpointConfig `yaml:"credentials,omitempty"`
	Detection   EndpointConfig `yaml:"detection,omitempty"`

	Bucket      string        `yaml:"bucket,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	Retries     int           `yaml:"retries,omitempty"`
	Proxy       string        `yaml:"proxy,omitempty"`
	UserAgent   string        `yaml:"userAgent,omitempty"`

	Export ExportConfig `yaml:"export,omitempty"`
}

// HeadersFor merges the default headers with those of the given service.
// Service headers win on conflict. The result is never nil.
func (f *File) HeadersFor(s Service) map[string]string {
	result := make(map[string]string, len(f.Defaults.Headers))
	for k, v := range f.Defaults.Headers {
		result[k] = v
	}

	var ep EndpointConfig
	switch s {
	case ServiceCredentials:
		ep = f.Credentials
	case ServiceDetection:
		ep = f.Detection
	}
	for k, v := range ep.Headers {
		result[k] = v
	}
	return result
}
