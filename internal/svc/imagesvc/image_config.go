package imagesvc

// DefaultMaxPixels is used when ImageConfig.MaxPixels is not set.
const DefaultMaxPixels = 25_000_000

// ImageConfig holds configuration parameters for the image service.
type ImageConfig struct {
	// Interpolator specifies the image scaling algorithm to use.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`

	// MaxWidth is the largest width a resized copy may be requested in.
	MaxWidth int `env:"MAX_WIDTH" default:"4096"`

	// MaxPixels bounds width*height of stored images and of resized copies.
	MaxPixels int64 `env:"MAX_PIXELS" default:"25000000"`
}
