package ports

import "context"

// Asset is a binary resource referenced by a deck template
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
}

// Extension returns the file extension implied by the content type
func (a *Asset) Extension() string {
	switch a.ContentType {
	case "image/jpeg":
		return "jpeg"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

// AssetFetcher resolves a path or URL into asset bytes
type AssetFetcher interface {
	Fetch(ctx context.Context, ref string) (*Asset, error)
}
