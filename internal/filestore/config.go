package filestore

// Provider identifies the flavour of S3-compatible storage behind a config.
type Provider string

const (
	ProviderAWS          Provider = "aws"
	ProviderMinIO        Provider = "minio"
	ProviderDigitalOcean Provider = "digitalocean"
	ProviderWasabi       Provider = "wasabi"
	ProviderBackblaze    Provider = "backblaze"
	ProviderOther        Provider = "other"
)

const (
	// DefaultEndpoint is the AWS public endpoint. An empty endpoint means
	// the same thing.
	DefaultEndpoint = "s3.amazonaws.com"

	// DefaultRegion is the provider's legacy default region. Buckets created
	// here must not carry a location constraint.
	DefaultRegion = "us-east-1"
)

// Config holds all settings needed to connect to a storage backend.
// It arrives with every command and is never persisted.
type Config struct {
	// Provider selects the driver. ProviderMinIO uses the MinIO SDK;
	// anything else (including "") uses the AWS SDK.
	Provider Provider `json:"provider,omitempty"`

	// Endpoint is the host[:port] of the storage server, without scheme.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string `json:"endpoint"`

	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`

	// DefaultBucket is an optional default bucket name.
	DefaultBucket string `json:"bucket,omitempty"`

	// UseSSL picks https:// over http:// for custom endpoints.
	UseSSL bool `json:"use_ssl"`

	// PathStyle puts the bucket in the URL path instead of the host name.
	// Needed for providers without per-bucket DNS.
	PathStyle bool `json:"path_style"`
}

// DefaultConfig returns a local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Region:    DefaultRegion,
		PathStyle: true,
	}
}

// HasCustomEndpoint reports whether the endpoint overrides the provider default.
func (c *Config) HasCustomEndpoint() bool {
	return c.Endpoint != "" && c.Endpoint != DefaultEndpoint
}

// EndpointURL returns the endpoint with a scheme chosen by UseSSL.
func (c *Config) EndpointURL() string {
	if c.UseSSL {
		return "https://" + c.Endpoint
	}
	return "http://" + c.Endpoint
}

// RegionOrDefault returns Region, or DefaultRegion when unset.
func (c *Config) RegionOrDefault() string {
	if c.Region == "" {
		return DefaultRegion
	}
	return c.Region
}
