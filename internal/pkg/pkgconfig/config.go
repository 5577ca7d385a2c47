package pkgconfig

// Config reads typed configuration values by dotted key.
type Config interface {
	// GetInt returns the value for key as int64.
	GetInt(key string) int64

	// GetBool returns the value for key as bool.
	GetBool(key string) bool

	// GetFloat returns the value for key as float64.
	GetFloat(key string) float64

	// GetString returns the value for key as string.
	GetString(key string) string

	// GetBinary returns the value for key decoded from base64.
	GetBinary(key string) []byte

	// GetArray returns the value for key split by commas.
	GetArray(key string) []string

	// GetMap returns the value for key as a string map.
	GetMap(key string) map[string]string

	// Close releases resources held by the implementation.
	Close() error
}
