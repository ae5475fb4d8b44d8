package converter

// ElementKind identifies the structural role of a document element.
type ElementKind string

const (
	ElementHeading   ElementKind = "heading"
	ElementParagraph ElementKind = "paragraph"
	ElementListItem  ElementKind = "list_item"
	ElementTable     ElementKind = "table"
	ElementPicture   ElementKind = "picture"
	ElementCaption   ElementKind = "caption"
)

// Element is one node of the converted document's structural tree.
type Element struct {
	// Kind indicates the structural role of this element.
	Kind ElementKind

	// Level is the heading depth (1-6). Zero for non-headings.
	Level int

	// Text is the element's plain text content.
	Text string

	// Page is the 1-based page the element appears on. Zero when unknown.
	Page int
}

// Document is the result of converting an uploaded file.
type Document struct {
	// Filename is the original upload filename.
	Filename string

	// Markdown is the full markdown export of the document.
	Markdown string

	// Elements is the structural tree in reading order.
	// May be empty when the backend returns only markdown.
	Elements []Element

	// Pages is the page count. Zero when unknown.
	Pages int

	// Tables is the number of tables detected.
	Tables int

	// Pictures is the number of pictures detected.
	Pictures int
}
