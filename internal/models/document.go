package models

// FetchedDocument describes a remote document downloaded into the local
// intake directory.
type FetchedDocument struct {
	URL         string
	Path        string
	Size        int64
	ContentType string
	Metadata    map[string]interface{}
}
