package config

const (
	defaultEndpoint       = "http://localhost:8077"
	defaultConnectTimeout = "10s"
	defaultChunkTimeout   = "30s"

	defaultHistoryDriver = "sqlite"

	defaultServeListen = ":8077"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Endpoint:       defaultEndpoint,
			ConnectTimeout: defaultConnectTimeout,
			ChunkTimeout:   defaultChunkTimeout,
		},
		History: HistoryConfig{
			Driver: defaultHistoryDriver,
		},
		Serve: ServeConfig{
			Listen: defaultServeListen,
		},
	}
}
