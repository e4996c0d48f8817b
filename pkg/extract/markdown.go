// Package extract converts downloaded court case files to Markdown.
// Document structure, bold and italic runs, legislation links and
// cross-references to other cases all survive the conversion;
// cross-references come out as links to the .md path of the target case.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Conversion stops at site footer boilerplate.
var footerMarkers = []string{
	"cylaw.org",
	"Από το ΚΙΝOΠ",
	"CyLii",
	"Παγκύπριο Δικηγορικό Σύλλογο",
	"Παγκύπριου Δικηγορικού Συλλόγου",
}

const maxConvertDepth = 50

var (
	inlineSpaceRe   = regexp.MustCompile(`[ \t]+`)
	cellSpaceRe     = regexp.MustCompile(`\s+`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
	filePathRe      = regexp.MustCompile(`file=([^\s&"']+)`)
	docExtRe        = regexp.MustCompile(`(?i)\.(html?|pdf)$`)
	mdRefRe         = regexp.MustCompile(`\]\([^)]*\.md\)`)
	mdSyntaxRe      = regexp.MustCompile(`[#*_\[\]()|>-]`)
	sectionsBlockRe = regexp.MustCompile(`(?s)<!---?sections_start-?--?>.*?<!---?sections_end-?--?>`)
	sinoCommentRe   = regexp.MustCompile(`<!--sino\s+[^>]+-->`)
)

var noteupReplacer = strings.NewReplacer(
	"<!---noteup_start--->", "",
	"<!---noteup_end--->", "",
	"<!--noteup_start-->", "",
	"<!--noteup_end-->", "",
)

func isFooter(text string) bool {
	for _, marker := range footerMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// stripMetadataSections removes the ECLI metadata comment blocks embedded
// in newer case files. The content between sections_start and sections_end
// is technical metadata, not case text. noteup markers go away but the
// text between them stays.
func stripMetadataSections(raw string) string {
	raw = sectionsBlockRe.ReplaceAllString(raw, "")
	raw = sinoCommentRe.ReplaceAllString(raw, "")
	return noteupReplacer.Replace(raw)
}

// hrefToMarkdownPath turns an open.pl gateway href into the local .md path
// of the referenced case.
func hrefToMarkdownPath(href string) string {
	m := filePathRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	fp := docExtRe.ReplaceAllString(m[1], ".md")
	if !strings.HasSuffix(fp, ".md") {
		fp += ".md"
	}
	return fp
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// childContent concatenates the converted children of n. Inline runs of
// spaces and tabs collapse, newlines stay.
func childContent(n *html.Node, depth int) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(inlineSpaceRe.ReplaceAllString(c.Data, " "))
		case html.ElementNode:
			b.WriteString(convertNode(c, depth+1))
		}
	}
	return b.String()
}

// convertNode renders one HTML node as Markdown.
func convertNode(n *html.Node, depth int) string {
	if depth > maxConvertDepth {
		return ""
	}
	if n.Type == html.TextNode {
		return inlineSpaceRe.ReplaceAllString(n.Data, " ")
	}
	if n.Type != html.ElementNode {
		return ""
	}

	tag := strings.ToLower(n.Data)
	switch tag {
	case "script", "style", "meta", "link", "img":
		return ""
	}

	content := strings.TrimSpace(childContent(n, depth))
	if content == "" {
		return ""
	}
	if isFooter(content) {
		return ""
	}

	switch tag {
	case "h1":
		return "\n\n# " + content + "\n\n"
	case "h2":
		return "\n\n## " + content + "\n\n"
	case "h3":
		return "\n\n### " + content + "\n\n"
	case "h4", "h5", "h6":
		return "\n\n#### " + content + "\n\n"
	case "p", "div":
		return "\n\n" + content + "\n\n"
	case "br":
		return "  \n"
	case "hr":
		return "\n\n---\n\n"
	case "blockquote":
		var quoted []string
		for _, line := range strings.Split(content, "\n") {
			if strings.TrimSpace(line) != "" {
				quoted = append(quoted, "> "+line)
			}
		}
		return "\n\n" + strings.Join(quoted, "\n") + "\n\n"
	case "ul", "dir":
		if items := convertList(n, depth, false); items != "" {
			return items
		}
		return "\n\n" + content + "\n\n"
	case "ol":
		if items := convertList(n, depth, true); items != "" {
			return items
		}
		return "\n\n" + content + "\n\n"
	case "li", "tr", "td", "th", "thead", "tbody", "tfoot":
		return content
	case "table":
		return convertTable(n, depth)
	case "a":
		return convertAnchor(n, content)
	case "b", "strong":
		return "**" + content + "**"
	case "i", "em", "u":
		return "*" + content + "*"
	case "sup", "sub":
		return content
	}
	return content
}

func convertList(n *html.Node, depth int, ordered bool) string {
	var items []string
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || strings.ToLower(c.Data) != "li" {
			continue
		}
		i++
		text := strings.TrimSpace(convertNode(c, depth+1))
		if text == "" {
			continue
		}
		if ordered {
			items = append(items, fmt.Sprintf("%d. %s", i, text))
		} else {
			items = append(items, "- "+text)
		}
	}
	if len(items) == 0 {
		return ""
	}
	return "\n\n" + strings.Join(items, "\n") + "\n\n"
}

func convertTable(n *html.Node, depth int) string {
	rows := findAll(n, "tr")
	if len(rows) == 0 {
		return ""
	}

	var mdRows [][]string
	for _, row := range rows {
		var cells []string
		for _, cell := range findAll(row, "td", "th") {
			text := strings.TrimSpace(convertNode(cell, depth+1))
			text = strings.ReplaceAll(text, "|", `\|`)
			text = cellSpaceRe.ReplaceAllString(text, " ")
			cells = append(cells, text)
		}
		if len(cells) > 0 {
			mdRows = append(mdRows, cells)
		}
	}
	if len(mdRows) == 0 {
		return ""
	}

	maxCols := 0
	for _, r := range mdRows {
		if len(r) > maxCols {
			maxCols = len(r)
		}
	}
	for i := range mdRows {
		for len(mdRows[i]) < maxCols {
			mdRows[i] = append(mdRows[i], "")
		}
	}

	sep := make([]string, maxCols)
	for i := range sep {
		sep[i] = "---"
	}

	lines := []string{
		"| " + strings.Join(mdRows[0], " | ") + " |",
		"| " + strings.Join(sep, " | ") + " |",
	}
	for _, r := range mdRows[1:] {
		lines = append(lines, "| "+strings.Join(r, " | ")+" |")
	}
	return "\n\n" + strings.Join(lines, "\n") + "\n\n"
}

// findAll returns descendant elements with one of the given tag names, in
// document order.
func findAll(n *html.Node, tags ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(parent *html.Node) {
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				name := strings.ToLower(c.Data)
				for _, t := range tags {
					if name == t {
						out = append(out, c)
						break
					}
				}
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func convertAnchor(n *html.Node, content string) string {
	href := nodeAttr(n, "href")
	if href == "" || strings.HasPrefix(href, "#") {
		return content
	}

	// Case cross-reference through the CGI gateway
	if strings.Contains(href, "open.pl") {
		if mdPath := hrefToMarkdownPath(href); mdPath != "" {
			return "[" + content + "](" + mdPath + ")"
		}
	}

	// Legislation links and other external links stay as-is
	if strings.Contains(href, "nomoi") || strings.Contains(href, "nomothesia") {
		return "[" + content + "](" + href + ")"
	}
	if strings.HasPrefix(href, "http") {
		return "[" + content + "](" + href + ")"
	}
	return content
}

func normalizeMarkdown(md string) string {
	md = blankLinesRe.ReplaceAllString(md, "\n\n")
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
}

// FromHTML converts one case file's HTML to Markdown. The <title> becomes
// an H1 heading; conversion of a subtree stops when footer boilerplate
// shows up in it.
func FromHTML(raw string) string {
	// CGI error artifacts prepend a header before the markup
	if strings.HasPrefix(raw, "Content-type:") {
		parts := strings.SplitN(raw, "\n", 3)
		raw = parts[len(parts)-1]
	}
	raw = stripMetadataSections(raw)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	var b strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		b.WriteString("# " + title + "\n\n")
	}

	body := doc.Find("body").First()
	if len(body.Nodes) > 0 {
		for c := body.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if text := strings.TrimSpace(c.Data); text != "" && !isFooter(text) {
					b.WriteString(text)
				}
			case html.ElementNode:
				b.WriteString(convertNode(c, 0))
			}
		}
	}

	return normalizeMarkdown(b.String())
}

// CountRefs counts case cross-references in converted Markdown.
func CountRefs(md string) int {
	return len(mdRefRe.FindAllString(md, -1))
}

// CountWords counts words with Markdown syntax stripped out.
func CountWords(md string) int {
	return len(strings.Fields(mdSyntaxRe.ReplaceAllString(md, " ")))
}
