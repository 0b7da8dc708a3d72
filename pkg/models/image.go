package models

// HealthResponse is returned by the liveness endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StoredImageResponse describes a freshly cached image.
type StoredImageResponse struct {
	ID        string `json:"id"`
	Thumbnail string `json:"thumbnail"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"sizeBytes"`
}

// ImageResponse carries a cached image as a data URL.
type ImageResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// UploadResponse is the result of the photo-to-stops pipeline. Stored is
// false when the readable image could not be cached; the addresses are
// still returned.
type UploadResponse struct {
	ID        string    `json:"id"`
	Thumbnail string    `json:"thumbnail"`
	Stored    bool      `json:"stored"`
	Addresses []Address `json:"addresses"`
}
