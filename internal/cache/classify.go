package cache

import (
	"bytes"
	"encoding/json"
	"path"
	"regexp"
	"strings"
)

// Kind says how a fetched result is persisted.
type Kind int

const (
	// KindJSON results are stored as a JSON document.
	KindJSON Kind = iota
	// KindMedia results are URLs whose content is downloaded and stored.
	KindMedia
)

func (k Kind) String() string {
	if k == KindMedia {
		return "media"
	}
	return "json"
}

const contentTypeJSON = "application/json"

var (
	imageExtRe = regexp.MustCompile(`\.(jpg|jpeg|png|gif|webp)\b`)
	pdfExtRe   = regexp.MustCompile(`\.pdf\b`)

	mimeByExt = map[string]string{
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
		"webp": "image/webp",
		"pdf":  "application/pdf",
	}
)

// Classification is the persist plan for one upstream result.
type Classification struct {
	Kind Kind

	// Payload is the JSON document to store (KindJSON).
	Payload []byte

	// URL, Ext and ContentType describe the media to download (KindMedia).
	URL         string
	Ext         string
	ContentType string
}

// Classify decides how body is persisted:
//   - a JSON value other than a string is stored as received
//   - a string starting with "http" that names an image or a PDF is downloaded
//   - any other "http" string is stored as {"url": ...}
//   - any other string, JSON-quoted or plain text, is stored as {"text": ...}
func Classify(body []byte) Classification {
	trimmed := bytes.TrimSpace(body)

	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		if s, ok := v.(string); ok {
			return classifyString(s)
		}
		return Classification{Kind: KindJSON, Payload: trimmed, ContentType: contentTypeJSON}
	}
	return classifyString(string(trimmed))
}

func classifyString(s string) Classification {
	lower := strings.ToLower(strings.TrimSpace(s))

	if strings.HasPrefix(lower, "http") {
		if m := imageExtRe.FindStringSubmatch(lower); m != nil {
			return mediaClassification(strings.TrimSpace(s), m[1])
		}
		if pdfExtRe.MatchString(lower) {
			return mediaClassification(strings.TrimSpace(s), "pdf")
		}
		return jsonWrap("url", s)
	}
	return jsonWrap("text", s)
}

func mediaClassification(url, ext string) Classification {
	return Classification{Kind: KindMedia, URL: url, Ext: ext, ContentType: mimeByExt[ext]}
}

func jsonWrap(field, s string) Classification {
	payload, _ := json.Marshal(map[string]string{field: s})
	return Classification{Kind: KindJSON, Payload: payload, ContentType: contentTypeJSON}
}

// contentTypeForKey guesses a content type from a stored key's extension, for
// backends whose listings do not carry one.
func contentTypeForKey(key string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
	if ext == "json" {
		return contentTypeJSON
	}
	if ct, ok := mimeByExt[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
