package filesvc

// FileConfig holds configuration parameters for the file service.
type FileConfig struct {
	// MaxSize is the maximum allowed size of an uploaded file in bytes.
	// Default is 20MB.
	MaxSize int64 `env:"MAX_SIZE" default:"20971520"`

	// ConcealForeign reports files owned by someone else as missing instead of forbidden.
	ConcealForeign bool `env:"CONCEAL_FOREIGN" default:"false"`

	// MultipartField is the form field carrying the uploaded file.
	MultipartField string `env:"MULTIPART_FIELD" default:"file"`
}
