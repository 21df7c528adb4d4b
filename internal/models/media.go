package models

type ContentType string

const (
	ImageContent ContentType = "image"
	FileContent  ContentType = "file"
	VideoContent ContentType = "video"
	AudioContent ContentType = "audio"
)

// Attachment is user supplied content sent along with a message. Data holds
// the base64 payload.
type Attachment struct {
	Type     ContentType `json:"type"`
	MimeType string      `json:"mimeType"`
	Data     string      `json:"data"`
	URL      string      `json:"url,omitempty"`
	Name     string      `json:"name,omitempty"`
}

// GeneratedMedia is image or video output produced by the model.
type GeneratedMedia struct {
	Type     ContentType `json:"type"`
	MimeType string      `json:"mimeType"`
	URL      string      `json:"url"`
}
