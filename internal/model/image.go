package model

// ImageSize is the provider's named output geometry.
type ImageSize string

const (
	ImageSizeSquareHD      ImageSize = "square_hd"
	ImageSizeSquare        ImageSize = "square"
	ImageSizePortrait4x3   ImageSize = "portrait_4_3"
	ImageSizePortrait16x9  ImageSize = "portrait_16_9"
	ImageSizeLandscape4x3  ImageSize = "landscape_4_3"
	ImageSizeLandscape16x9 ImageSize = "landscape_16_9"
)

// Valid reports whether s is one of the sizes the provider accepts.
func (s ImageSize) Valid() bool {
	switch s {
	case ImageSizeSquareHD, ImageSizeSquare,
		ImageSizePortrait4x3, ImageSizePortrait16x9,
		ImageSizeLandscape4x3, ImageSizeLandscape16x9:
		return true
	}
	return false
}

// ImageRequest is the parameter bundle posted by the generation form.
// Field names match the JSON the browser sends.
type ImageRequest struct {
	Prompt    string    `json:"prompt"`
	Steps     int       `json:"steps"`
	ImageSize ImageSize `json:"image_size"`
	Seed      int64     `json:"seed"`
	Guidance  float64   `json:"guidance"`
}
