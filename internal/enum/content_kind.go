package enum

import "strings"

// ContentKind is the closed set of extraction strategies an attachment can map to.
type ContentKind string

const (
	ContentKindPDF         ContentKind = "pdf"
	ContentKindImage       ContentKind = "image"
	ContentKindUnsupported ContentKind = "unsupported"
)

func (k ContentKind) String() string {
	return string(k)
}

// ContentKindOf classifies a MIME content type once; parameters such as
// "; name=x.pdf" are ignored.
func ContentKindOf(contentType string) ContentKind {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	switch {
	case mediaType == "application/pdf":
		return ContentKindPDF
	case strings.HasPrefix(mediaType, "image/"):
		return ContentKindImage
	default:
		return ContentKindUnsupported
	}
}
