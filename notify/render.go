package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"deskresearch/repository"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxListedSources  = 6
	subjectQueryRunes = 60
)

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Arial, sans-serif;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 40px 20px; border-radius: 10px; text-align: center;">
<h1 style="color: white; margin: 0; font-size: 28px;">Research Report</h1>
<p style="color: rgba(255,255,255,0.9); margin: 10px 0 0 0; font-size: 14px;">Most Recent Academic Papers</p>
</div>
<div style="margin: 30px 0; padding: 20px; background: #f5f7fa; border-radius: 8px;">
<h2 style="color: #333; margin: 0 0 10px 0; font-size: 18px;">Research Question</h2>
<p style="color: #555; margin: 0; font-size: 16px; line-height: 1.6;">{{.Query}}</p>
</div>
<div style="margin: 30px 0;">
<h2 style="color: #333; margin: 0 0 15px 0; font-size: 20px;">Executive Summary</h2>
<div style="background: white; padding: 25px; border: 1px solid #e0e0e0; border-radius: 8px; line-height: 1.8; color: #444;">
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}</div>
</div>
<div style="margin: 30px 0;">
<h2 style="color: #333; margin: 0 0 15px 0; font-size: 20px;">Recent Sources</h2>
{{range .Sources}}<div style="margin-bottom: 15px; padding: 12px; background: #f9f9f9; border-left: 3px solid #667eea; border-radius: 4px;">
<strong style="color: #667eea;">[{{.Index}}]</strong>
<a href="{{.URL}}" style="color: #333; text-decoration: none; font-weight: 600;">{{.Title}}</a>
<div style="font-size: 12px; color: #999; margin-top: 5px;">Published: {{.Published}} | Relevance: {{.Relevance}}</div>
</div>
{{end}}</div>
<div style="margin-top: 40px; padding-top: 20px; border-top: 2px solid #e0e0e0; text-align: center;">
<p style="color: #999; font-size: 12px; margin: 0;">This report was generated automatically using AI and semantic search with Qdrant</p>
</div>
</div>
</body>
</html>
`))

type sourceView struct {
	Index     int
	Title     string
	URL       string
	Published string
	Relevance string
}

type reportView struct {
	Query      string
	Paragraphs []template.HTML
	Sources    []sourceView
}

// Rendered holds both bodies of a report e-mail.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// RenderReport builds the e-mail for a finished run. Model output is treated
// as untrusted: any markup in it is stripped before templating.
func RenderReport(query, report string, sources []repository.ScoredDocument) (*Rendered, error) {
	policy := bluemonday.StrictPolicy()

	view := reportView{Query: query}
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		view.Paragraphs = append(view.Paragraphs, template.HTML(policy.Sanitize(line)))
	}

	if len(sources) > maxListedSources {
		sources = sources[:maxListedSources]
	}
	for i, src := range sources {
		published := src.PublishedDate
		if !src.HasDate() {
			published = "Unknown date"
		}
		view.Sources = append(view.Sources, sourceView{
			Index:     i + 1,
			Title:     src.Title,
			URL:       src.URL,
			Published: published,
			Relevance: fmt.Sprintf("%.3f", src.RelevanceScore),
		})
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	html := buf.String()

	text, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return nil, fmt.Errorf("failed to render plain-text report: %w", err)
	}

	return &Rendered{
		Subject: Subject(query),
		HTML:    html,
		Text:    text,
	}, nil
}

func Subject(query string) string {
	r := []rune(strings.TrimSpace(query))
	if len(r) > subjectQueryRunes {
		r = r[:subjectQueryRunes]
	}
	return "Research Report: " + string(r) + "..."
}
