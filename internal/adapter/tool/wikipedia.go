package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"sleuth/internal/domain"
	"sleuth/internal/infra/tracer"
)

const (
	defaultWikiSentences = 10
	maxWikiSections      = 5
	maxWikiLinks         = 10
	maxSectionChars      = 3000
	maxWikiBodySize      = 2 * 1024 * 1024 // 2MB
)

// WikipediaClient talks to the MediaWiki action API.
type WikipediaClient struct {
	client    *http.Client
	apiURL    string
	userAgent string
	logger    *slog.Logger
}

// NewWikipediaClient creates a client for the given language edition.
func NewWikipediaClient(language, userAgent string, logger *slog.Logger) *WikipediaClient {
	if language == "" {
		language = "en"
	}
	return &WikipediaClient{
		client:    &http.Client{Timeout: 15 * time.Second},
		apiURL:    fmt.Sprintf("https://%s.wikipedia.org/w/api.php", language),
		userAgent: userAgent,
		logger:    logger,
	}
}

func (c *WikipediaClient) get(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: wikipedia request: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWikiBodySize))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia http %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", domain.ErrParse, err)
	}
	return nil
}

// wikiPage holds the fields extracted for a search response.
type wikiPage struct {
	Title    string
	Extract  string
	FullURL  string
	Sections []string
	Links    []string
}

// lookupPage resolves a query to a page with summary, URL, sections, and links.
// Returns ok=false when no page matches.
func (c *WikipediaClient) lookupPage(ctx context.Context, query string) (wikiPage, bool, error) {
	// Resolve the query to a canonical title first; the extract endpoint
	// needs an exact title.
	var searchResp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := c.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {"1"},
	}, &searchResp); err != nil {
		return wikiPage{}, false, err
	}
	if len(searchResp.Query.Search) == 0 {
		return wikiPage{}, false, nil
	}
	title := searchResp.Query.Search[0].Title

	var pageResp struct {
		Query struct {
			Pages []struct {
				Title   string `json:"title"`
				Extract string `json:"extract"`
				FullURL string `json:"fullurl"`
				Links   []struct {
					Title string `json:"title"`
				} `json:"links"`
				Missing bool `json:"missing"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.get(ctx, url.Values{
		"action":      {"query"},
		"prop":        {"extracts|info|links"},
		"titles":      {title},
		"explaintext": {"1"},
		"inprop":      {"url"},
		"pllimit":     {fmt.Sprint(maxWikiLinks)},
	}, &pageResp); err != nil {
		return wikiPage{}, false, err
	}
	if len(pageResp.Query.Pages) == 0 || pageResp.Query.Pages[0].Missing {
		return wikiPage{}, false, nil
	}
	p := pageResp.Query.Pages[0]

	sections, err := c.sectionTitles(ctx, p.Title)
	if err != nil {
		return wikiPage{}, false, err
	}
	if len(sections) > maxWikiSections {
		sections = sections[:maxWikiSections]
	}

	links := make([]string, 0, maxWikiLinks)
	for _, l := range p.Links {
		if len(links) >= maxWikiLinks {
			break
		}
		links = append(links, l.Title)
	}

	return wikiPage{
		Title:    p.Title,
		Extract:  p.Extract,
		FullURL:  p.FullURL,
		Sections: sections,
		Links:    links,
	}, true, nil
}

// wikiSection is one entry from the parse sections listing.
type wikiSection struct {
	Index string `json:"index"`
	Line  string `json:"line"`
}

func (c *WikipediaClient) sections(ctx context.Context, title string) ([]wikiSection, bool, error) {
	var resp struct {
		Parse struct {
			Sections []wikiSection `json:"sections"`
		} `json:"parse"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := c.get(ctx, url.Values{
		"action": {"parse"},
		"page":   {title},
		"prop":   {"sections"},
	}, &resp); err != nil {
		return nil, false, err
	}
	if resp.Error.Code != "" {
		return nil, false, nil // page does not exist
	}
	return resp.Parse.Sections, true, nil
}

func (c *WikipediaClient) sectionTitles(ctx context.Context, title string) ([]string, error) {
	secs, _, err := c.sections(ctx, title)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(secs))
	for _, s := range secs {
		titles = append(titles, s.Line)
	}
	return titles, nil
}

// sectionText fetches the rendered HTML of one section and strips it to text.
func (c *WikipediaClient) sectionText(ctx context.Context, title, index string) (string, error) {
	var resp struct {
		Parse struct {
			Text string `json:"text"`
		} `json:"parse"`
	}
	if err := c.get(ctx, url.Values{
		"action":  {"parse"},
		"page":    {title},
		"section": {index},
		"prop":    {"text"},
	}, &resp); err != nil {
		return "", err
	}

	_, text, err := extractText(strings.NewReader(resp.Parse.Text))
	if err != nil {
		return "", fmt.Errorf("%w: strip section html: %v", domain.ErrParse, err)
	}
	return text, nil
}

// --- wikipedia_search tool ---

// WikipediaSearchTool looks up a topic and returns a page overview.
type WikipediaSearchTool struct {
	client *WikipediaClient
	logger *slog.Logger
}

func NewWikipediaSearchTool(client *WikipediaClient, logger *slog.Logger) *WikipediaSearchTool {
	return &WikipediaSearchTool{client: client, logger: logger}
}

func (t *WikipediaSearchTool) Name() string { return "wikipedia_search" }

func (t *WikipediaSearchTool) Description() string {
	return "Search Wikipedia for a topic. Returns the page summary, URL, section titles, and related topics."
}

func (t *WikipediaSearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The topic to search for"},
				"sentences": {"type": "integer", "minimum": 1, "maximum": 30, "description": "Number of summary sentences to return (default: 10)"}
			},
			"required": ["query"]
		}`),
	}
}

type wikipediaSearchParams struct {
	Query     string `json:"query"`
	Sentences int    `json:"sentences,omitempty"`
}

// wikipediaSearchResponse mirrors the shape the LLM is prompted to expect.
type wikipediaSearchResponse struct {
	Found         bool     `json:"found"`
	Query         string   `json:"query,omitempty"`
	Suggestion    string   `json:"suggestion,omitempty"`
	Title         string   `json:"title,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	URL           string   `json:"url,omitempty"`
	Sections      []string `json:"sections,omitempty"`
	RelatedTopics []string `json:"related_topics,omitempty"`
}

func (t *WikipediaSearchTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.wikipedia_search", t.logger, params,
		func(ctx context.Context, span trace.Span, p wikipediaSearchParams) (any, error) {
			if err := RequireField("query", p.Query); err != nil {
				return nil, err
			}
			if p.Sentences <= 0 {
				p.Sentences = defaultWikiSentences
			}

			span.SetAttributes(tracer.StringAttr("tool.query", p.Query))

			page, ok, err := t.client.lookupPage(ctx, p.Query)
			if err != nil {
				return nil, err
			}
			if !ok {
				// Miss is a navigable outcome for the model, not a failure.
				return wikipediaSearchResponse{
					Found:      false,
					Query:      p.Query,
					Suggestion: "Page not found. Try rephrasing your search query or search for related terms.",
				}, nil
			}

			t.logger.Debug("wikipedia page found", "query", p.Query, "title", page.Title)
			return wikipediaSearchResponse{
				Found:         true,
				Title:         page.Title,
				Summary:       firstSentences(page.Extract, p.Sentences),
				URL:           page.FullURL,
				Sections:      page.Sections,
				RelatedTopics: page.Links,
			}, nil
		},
	)
}

// firstSentences returns the first n sentences of text, splitting on ". ".
func firstSentences(text string, n int) string {
	parts := strings.SplitN(text, ". ", n+1)
	if len(parts) <= n {
		return text
	}
	return strings.Join(parts[:n], ". ") + "."
}

// --- wikipedia_section tool ---

// WikipediaSectionTool fetches the text of one section of a page.
type WikipediaSectionTool struct {
	client *WikipediaClient
	logger *slog.Logger
}

func NewWikipediaSectionTool(client *WikipediaClient, logger *slog.Logger) *WikipediaSectionTool {
	return &WikipediaSectionTool{client: client, logger: logger}
}

func (t *WikipediaSectionTool) Name() string { return "wikipedia_section" }

func (t *WikipediaSectionTool) Description() string {
	return "Get detailed content from a specific section of a Wikipedia page."
}

func (t *WikipediaSectionTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"page_title": {"type": "string", "description": "The title of the Wikipedia page"},
				"section_title": {"type": "string", "description": "The title of the section to retrieve"}
			},
			"required": ["page_title", "section_title"]
		}`),
	}
}

type wikipediaSectionParams struct {
	PageTitle    string `json:"page_title"`
	SectionTitle string `json:"section_title"`
}

type wikipediaSectionResponse struct {
	Found             bool     `json:"found"`
	Error             string   `json:"error,omitempty"`
	AvailableSections []string `json:"available_sections,omitempty"`
	PageTitle         string   `json:"page_title,omitempty"`
	SectionTitle      string   `json:"section_title,omitempty"`
	Content           string   `json:"content,omitempty"`
}

func (t *WikipediaSectionTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.wikipedia_section", t.logger, params,
		func(ctx context.Context, span trace.Span, p wikipediaSectionParams) (any, error) {
			if err := ValidateAll(
				RequireField("page_title", p.PageTitle),
				RequireField("section_title", p.SectionTitle),
			); err != nil {
				return nil, err
			}

			span.SetAttributes(
				tracer.StringAttr("tool.page", p.PageTitle),
				tracer.StringAttr("tool.section", p.SectionTitle),
			)

			secs, pageFound, err := t.client.sections(ctx, p.PageTitle)
			if err != nil {
				return nil, err
			}
			if !pageFound {
				return wikipediaSectionResponse{
					Found: false,
					Error: fmt.Sprintf("Page '%s' not found", p.PageTitle),
				}, nil
			}

			var match *wikiSection
			available := make([]string, 0, len(secs))
			for i := range secs {
				available = append(available, secs[i].Line)
				if match == nil && strings.EqualFold(secs[i].Line, p.SectionTitle) {
					match = &secs[i]
				}
			}
			if match == nil {
				// Listing what IS available lets the model self-correct in
				// one step instead of probing blindly.
				return wikipediaSectionResponse{
					Found:             false,
					Error:             fmt.Sprintf("Section '%s' not found in page '%s'", p.SectionTitle, p.PageTitle),
					AvailableSections: available,
				}, nil
			}

			content, err := t.client.sectionText(ctx, p.PageTitle, match.Index)
			if err != nil {
				return nil, err
			}
			if len(content) > maxSectionChars {
				cut := maxSectionChars
				for cut > 0 && !utf8.RuneStart(content[cut]) {
					cut--
				}
				content = content[:cut]
			}

			return wikipediaSectionResponse{
				Found:        true,
				PageTitle:    p.PageTitle,
				SectionTitle: p.SectionTitle,
				Content:      content,
			}, nil
		},
	)
}
