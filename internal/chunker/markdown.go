package chunker

import (
	"regexp"
	"strings"

	"github.com/nicozefrench/diveteacher/internal/converter"
)

// Matches markdown headings (# to ######).
var headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// elementsFromMarkdown reconstructs a structural element tree from a
// markdown export. Used when the conversion backend returns no JSON
// body. Code fences are treated as opaque paragraph content.
func elementsFromMarkdown(markdown string) []converter.Element {
	var elements []converter.Element
	var para strings.Builder
	inCodeBlock := false

	flush := func() {
		text := strings.TrimSpace(para.String())
		para.Reset()
		if text != "" {
			elements = append(elements, converter.Element{
				Kind: converter.ElementParagraph,
				Text: text,
			})
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			para.WriteString(line)
			para.WriteString("\n")
			continue
		}

		if inCodeBlock {
			para.WriteString(line)
			para.WriteString("\n")
			continue
		}

		if m := headingRegex.FindStringSubmatch(line); m != nil {
			flush()
			elements = append(elements, converter.Element{
				Kind:  converter.ElementHeading,
				Level: len(m[1]),
				Text:  strings.TrimSpace(m[2]),
			})
			continue
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		para.WriteString(line)
		para.WriteString("\n")
	}
	flush()

	return elements
}
