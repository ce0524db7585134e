package dto

// UploadResponse is the relay's answer to a successful upload.
type UploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}
