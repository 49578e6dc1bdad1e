package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/PabloGalante/insighter/internal/domain"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

func storeBytes(ctx context.Context, storage domain.FileStorage, data []byte, filename string) (*domain.FileRef, error) {
	if storage == nil {
		return nil, errors.New("no file storage configured")
	}
	return storage.Upload(ctx, bytes.NewReader(data), filename)
}

// slug turns a title into a file name stem.
func slug(title, def string) string {
	s := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(title), "-"), "-")
	if s == "" {
		return def
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return strings.ToLower(s)
}

// PublishDocumentTool stores a markdown or plain-text report.
type PublishDocumentTool struct {
	storage domain.FileStorage
}

func NewPublishDocumentTool(storage domain.FileStorage) *PublishDocumentTool {
	return &PublishDocumentTool{storage: storage}
}

func (t *PublishDocumentTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "publish_document",
		Description: "Save a report as a downloadable document and return its URL.",
		Params: []domain.ToolParam{
			{Name: "title", Type: domain.ParamString, Description: "Document title.", Required: true},
			{Name: "content", Type: domain.ParamString, Description: "Document body.", Required: true},
			{Name: "format", Type: domain.ParamString, Description: "markdown (default) or text.", Enum: []string{"markdown", "text"}},
		},
	}
}

func (t *PublishDocumentTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	title := getString(args, "title")
	content := getString(args, "content")

	ext := ".md"
	body := fmt.Sprintf("# %s\n\n%s\n", title, content)
	if getString(args, "format") == "text" {
		ext = ".txt"
		body = fmt.Sprintf("%s\n\n%s\n", title, content)
	}

	ref, err := storeBytes(ctx, t.storage, []byte(body), slug(title, "report")+ext)
	if err != nil {
		return "", failed("document upload", err)
	}
	return fmt.Sprintf("document %q published: %s (%d bytes)", title, ref.URL, ref.SizeBytes), nil
}

// PublishHTMLTool validates and stores a generated web page.
type PublishHTMLTool struct {
	storage domain.FileStorage
}

func NewPublishHTMLTool(storage domain.FileStorage) *PublishHTMLTool {
	return &PublishHTMLTool{storage: storage}
}

func (t *PublishHTMLTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "publish_html_page",
		Description: "Validate a complete HTML page (inline CSS/JS allowed), store it and return its URL.",
		Params: []domain.ToolParam{
			{Name: "html", Type: domain.ParamString, Description: "The full HTML document.", Required: true},
			{Name: "title", Type: domain.ParamString, Description: "Fallback title when the page has no <title>."},
		},
	}
}

func (t *PublishHTMLTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	page, title, err := preparePage(getString(args, "html"), getString(args, "title"))
	if err != nil {
		return "", failed("html validation", err)
	}

	ref, err := storeBytes(ctx, t.storage, []byte(page), slug(title, "page")+".html")
	if err != nil {
		return "", failed("html upload", err)
	}
	return fmt.Sprintf("page %q published: %s", title, ref.URL), nil
}

// preparePage parses the markup, requires visible content and returns a full document.
func preparePage(markup, fallbackTitle string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", "", err
	}

	body := doc.Find("body")
	if strings.TrimSpace(body.Text()) == "" && body.Find("canvas, svg, img, table, div").Length() == 0 {
		return "", "", errors.New("page has no visible content")
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = fallbackTitle
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = "untitled"
	}
	if doc.Find("title").Length() == 0 {
		doc.Find("head").AppendHtml("<title>" + html.EscapeString(title) + "</title>")
	}

	out, err := goquery.OuterHtml(doc.Find("html"))
	if err != nil {
		return "", "", err
	}
	return "<!DOCTYPE html>\n" + out, title, nil
}

