package routing

import (
	"fmt"

	"github.com/PabloGalante/insighter/internal/domain"
)

// Normalize renders file and image items as text so a routing model can read them.
// Messages are never mutated; plain-text messages are returned as-is.
// Normalizing an already normalized list is a no-op.
func Normalize(msgs []*domain.Message) []*domain.Message {
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.Content.IsPlain() {
			out = append(out, m)
			continue
		}

		items := make([]domain.ContentItem, 0, len(m.Content.Items))
		for _, it := range m.Content.Items {
			items = append(items, normalizeItem(it))
		}

		cp := *m
		cp.Content = domain.Content{Items: items}
		out = append(out, &cp)
	}
	return out
}

func normalizeItem(it domain.ContentItem) domain.ContentItem {
	if it.File == nil {
		// malformed or text: pass through
		return it
	}

	switch it.Type {
	case domain.ContentFile:
		return domain.ContentItem{
			Type: domain.ContentText,
			Text: DescribeFile(it.File),
		}
	case domain.ContentImage:
		return domain.ContentItem{
			Type: domain.ContentText,
			Text: fmt.Sprintf("[image: uploaded image, url: %s]", it.File.URL),
		}
	default:
		return it
	}
}

// DescribeFile is the textual proxy of a file attachment.
func DescribeFile(f *domain.FileRef) string {
	return fmt.Sprintf("[file: %s, type: %s, size: %d bytes, url: %s]",
		orUnknown(f.Filename), orUnknown(f.MimeType), f.SizeBytes, f.URL)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
