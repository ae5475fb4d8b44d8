package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const doclingConverterName = "docling"

// warmupMarkdown is a tiny document converted at startup to force the
// backend to load its models before the first real upload arrives.
const warmupMarkdown = "# Warmup\n\nService warmup document.\n"

// DoclingConverter converts documents through a docling-serve endpoint.
type DoclingConverter struct {
	endpoint   string
	httpClient *http.Client
}

// NewDoclingConverter creates a converter backed by the docling-serve
// instance at endpoint (e.g. "http://docling:5001").
func NewDoclingConverter(endpoint string) *DoclingConverter {
	return &DoclingConverter{
		endpoint: endpoint,
		httpClient: &http.Client{
			// Per-request deadlines come from the caller's context; the
			// client timeout is a backstop for leaked requests.
			Timeout: 30 * time.Minute,
		},
	}
}

// Name returns the converter's identifier.
func (c *DoclingConverter) Name() string {
	return doclingConverterName
}

// doclingResponse is the wire format returned by docling-serve.
type doclingResponse struct {
	Document struct {
		MDContent   string          `json:"md_content"`
		JSONContent json.RawMessage `json:"json_content"`
	} `json:"document"`
	Status string `json:"status"`
	Errors []struct {
		Message string `json:"error_message"`
	} `json:"errors"`
}

// doclingBody is the subset of the docling JSON export we read.
type doclingBody struct {
	Texts []struct {
		Label string `json:"label"`
		Level int    `json:"level"`
		Text  string `json:"text"`
		Prov  []struct {
			PageNo int `json:"page_no"`
		} `json:"prov"`
	} `json:"texts"`
	Tables   []json.RawMessage          `json:"tables"`
	Pictures []json.RawMessage          `json:"pictures"`
	Pages    map[string]json.RawMessage `json:"pages"`
}

// Convert uploads the file to docling-serve and parses the result.
func (c *DoclingConverter) Convert(ctx context.Context, path string) (*Document, error) {
	// Local PDF preflight catches corrupt files before the expensive
	// round trip to the conversion backend.
	pages := 0
	if SupportsPreflight(path) {
		n, err := PDFPageCount(path)
		if err != nil {
			return nil, fmt.Errorf("failed PDF preflight for %s; %w", filepath.Base(path), err)
		}
		pages = n
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s; %w", path, err)
	}
	defer f.Close()

	doc, err := c.convertReader(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}

	if doc.Pages == 0 {
		doc.Pages = pages
	}
	return doc, nil
}

func (c *DoclingConverter) convertReader(ctx context.Context, filename string, r io.Reader) (*Document, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request; %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read document body; %w", err)
	}
	if err := mw.WriteField("to_formats", "md"); err != nil {
		return nil, fmt.Errorf("failed to build multipart request; %w", err)
	}
	if err := mw.WriteField("to_formats", "json"); err != nil {
		return nil, fmt.Errorf("failed to build multipart request; %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart request; %w", err)
	}

	url := c.endpoint + "/v1alpha/convert/file"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversion request; %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach conversion service; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("conversion service returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed doclingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode conversion response; %w", err)
	}

	if parsed.Status == "failure" || parsed.Status == "error" {
		msg := "unknown error"
		if len(parsed.Errors) > 0 {
			msg = parsed.Errors[0].Message
		}
		return nil, fmt.Errorf("conversion failed: %s", msg)
	}

	doc := &Document{
		Filename: filename,
		Markdown: parsed.Document.MDContent,
	}

	if len(parsed.Document.JSONContent) > 0 {
		var b doclingBody
		if err := json.Unmarshal(parsed.Document.JSONContent, &b); err == nil {
			doc.Elements = elementsFromDocling(&b)
			doc.Tables = len(b.Tables)
			doc.Pictures = len(b.Pictures)
			doc.Pages = len(b.Pages)
		}
	}

	return doc, nil
}

// elementsFromDocling maps the docling text items onto the element tree.
func elementsFromDocling(b *doclingBody) []Element {
	elements := make([]Element, 0, len(b.Texts))

	for _, t := range b.Texts {
		if t.Text == "" {
			continue
		}

		el := Element{Text: t.Text}
		if len(t.Prov) > 0 {
			el.Page = t.Prov[0].PageNo
		}

		switch t.Label {
		case "title":
			el.Kind = ElementHeading
			el.Level = 1
		case "section_header":
			el.Kind = ElementHeading
			el.Level = t.Level
			if el.Level < 1 {
				el.Level = 2
			}
		case "list_item":
			el.Kind = ElementListItem
		case "caption":
			el.Kind = ElementCaption
		default:
			el.Kind = ElementParagraph
		}

		elements = append(elements, el)
	}

	return elements
}

// Warmup converts a tiny built-in document to force model loading.
func (c *DoclingConverter) Warmup(ctx context.Context) error {
	_, err := c.convertReader(ctx, "warmup.md", bytes.NewReader([]byte(warmupMarkdown)))
	if err != nil {
		return fmt.Errorf("failed converter warmup; %w", err)
	}
	return nil
}

// Healthy checks the docling-serve health endpoint.
func (c *DoclingConverter) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request; %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("conversion service unreachable; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conversion service health returned %d", resp.StatusCode)
	}
	return nil
}

var _ Converter = (*DoclingConverter)(nil)
