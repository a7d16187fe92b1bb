package tools

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxContentChars = 50000

var numberedLine = regexp.MustCompile(`(?i)^\s*(?:step\s*)?\d{1,3}[.):]\s+(.+)$`)

type Article struct {
	Title   string
	Excerpt string
	Text    string
}

// extractArticle pulls the main readable content out of an HTML page and
// strips any markup left in it.
func extractArticle(r io.Reader, pageURL *url.URL) (Article, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return Article{}, fmt.Errorf("failed to parse article: %v", err)
	}
	p := bluemonday.StrictPolicy()
	return Article{
		Title:   article.Title,
		Excerpt: article.Excerpt,
		Text:    p.Sanitize(article.TextContent),
	}, nil
}

// ExtractSteps returns numbered lines ("1. Thaw cells", "Step 2: ...") in
// document order. Anything else is ignored.
func ExtractSteps(text string) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if s := strings.TrimSpace(m[1]); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

func (a Article) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", a.Title)
	if a.Excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", a.Excerpt)
	}
	if steps := ExtractSteps(a.Text); len(steps) > 0 {
		b.WriteString("\n-- NUMBERED STEPS --\n")
		for i, s := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	b.WriteString("\n-- CONTENT --\n")

	content := a.Text
	if len(content) > maxContentChars {
		content = content[:maxContentChars] + "\n... (content truncated) ..."
	}
	b.WriteString(content)
	return b.String()
}
