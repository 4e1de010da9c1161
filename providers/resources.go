package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-integrations/core"
	"golang.org/x/oauth2"
)

const (
	defaultLimitParam               = "limit"
	maxResourceResponseBodyBytes    = 4 << 20 // 4 MiB
	maxResourceErrorBodyBytesToKeep = 4 << 10
)

// Category describes one listable resource: where to fetch it and how each
// raw record maps to an item.
type Category struct {
	Tag      string
	Type     string
	Endpoint string
	Query    url.Values
	// LimitParam names the page size query parameter. Defaults to "limit".
	LimitParam string
	// ResultsField names the array holding the records. Empty means the
	// response body is the array itself.
	ResultsField string
	Map          func(Record) MappedItem
}

// MappedItem is what a category mapping extracts from one raw record. The
// provider derives the item id and falls back to NativeID for an empty name.
type MappedItem struct {
	NativeID string
	Name     string
	Metadata map[string]any
}

func (c Category) normalize() (Category, error) {
	c.Tag = strings.TrimSpace(strings.ToLower(c.Tag))
	if c.Tag == "" {
		return Category{}, fmt.Errorf("category tag is required")
	}
	c.Type = strings.TrimSpace(c.Type)
	if c.Type == "" {
		c.Type = c.Tag
	}
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.Endpoint == "" {
		return Category{}, fmt.Errorf("category %q endpoint is required", c.Tag)
	}
	if _, err := url.Parse(c.Endpoint); err != nil {
		return Category{}, fmt.Errorf("category %q endpoint is invalid: %w", c.Tag, err)
	}
	if c.Map == nil {
		return Category{}, fmt.Errorf("category %q mapping function is required", c.Tag)
	}
	c.LimitParam = strings.TrimSpace(c.LimitParam)
	if c.LimitParam == "" {
		c.LimitParam = defaultLimitParam
	}
	c.ResultsField = strings.TrimSpace(c.ResultsField)
	query := url.Values{}
	for key, values := range c.Query {
		query[key] = append([]string(nil), values...)
	}
	c.Query = query
	return c, nil
}

func (p *OAuth2Provider) Categories() []core.ResourceCategory {
	if p == nil {
		return []core.ResourceCategory{}
	}
	out := make([]core.ResourceCategory, 0, len(p.cfg.Categories))
	for _, category := range p.cfg.Categories {
		out = append(out, core.ResourceCategory{Tag: category.Tag, Type: category.Type})
	}
	return out
}

// FetchCategory lists the first page of one category with the credential's
// access token and maps every record in response order. Records without a
// native id are skipped.
func (p *OAuth2Provider) FetchCategory(
	ctx context.Context,
	resource core.ResourceCategory,
	credential core.Credential,
	limit int,
) ([]core.IntegrationItem, error) {
	if p == nil {
		return nil, fmt.Errorf("providers: oauth2 provider is nil")
	}
	category, ok := p.categories[strings.TrimSpace(strings.ToLower(resource.Tag))]
	if !ok {
		return nil, fmt.Errorf("providers: category %q is not configured for provider %q", resource.Tag, p.cfg.ID)
	}
	accessToken := strings.TrimSpace(credential.AccessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("providers: access token is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint, err := url.Parse(category.Endpoint)
	if err != nil {
		return nil, core.WrapUpstreamAPIError(p.cfg.ID, category.Tag, err)
	}
	query := endpoint.Query()
	for key, values := range category.Query {
		query[key] = append([]string(nil), values...)
	}
	if limit > 0 {
		query.Set(category.LimitParam, strconv.Itoa(limit))
	}
	endpoint.RawQuery = query.Encode()

	requestCtx, cancel := context.WithTimeout(ctx, p.cfg.ResourceRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, core.WrapUpstreamAPIError(p.cfg.ID, category.Tag, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	response, err := p.resourceClient(requestCtx, credential).Do(httpReq)
	if err != nil {
		return nil, core.WrapUpstreamAPIError(p.cfg.ID, category.Tag, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResourceResponseBodyBytes+1))
	if err != nil {
		return nil, core.WrapUpstreamAPIError(p.cfg.ID, category.Tag, err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		if len(body) > maxResourceErrorBodyBytesToKeep {
			body = body[:maxResourceErrorBodyBytesToKeep]
		}
		return nil, core.NewUpstreamAPIError(p.cfg.ID, category.Tag, response.StatusCode, string(body))
	}
	if int64(len(body)) > maxResourceResponseBodyBytes {
		return nil, core.WrapUpstreamAPIError(
			p.cfg.ID,
			category.Tag,
			fmt.Errorf("providers: response exceeds %d bytes", maxResourceResponseBodyBytes),
		)
	}

	records, err := decodeRecords(body, category.ResultsField)
	if err != nil {
		return nil, core.WrapUpstreamAPIError(p.cfg.ID, category.Tag, err)
	}

	items := make([]core.IntegrationItem, 0, len(records))
	for _, record := range records {
		mapped := category.Map(record)
		nativeID := strings.TrimSpace(mapped.NativeID)
		if nativeID == "" {
			continue
		}
		name := strings.TrimSpace(mapped.Name)
		if name == "" {
			name = nativeID
		}
		items = append(items, core.IntegrationItem{
			ID:       nativeID + "_" + category.Tag,
			Type:     category.Type,
			Name:     name,
			Metadata: mapped.Metadata,
		})
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

// resourceClient wraps the configured client so every request carries the
// credential as an oauth2 bearer token.
func (p *OAuth2Provider) resourceClient(ctx context.Context, credential core.Credential) *http.Client {
	token := &oauth2.Token{
		AccessToken: strings.TrimSpace(credential.AccessToken),
		TokenType:   credential.TokenType,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}

func decodeRecords(body []byte, resultsField string) ([]Record, error) {
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("providers: decode resource response: %w", err)
	}

	list := decoded
	if resultsField != "" {
		object, ok := decoded.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("providers: resource response is not an object")
		}
		list, ok = object[resultsField]
		if !ok || list == nil {
			return []Record{}, nil
		}
	}
	entries, ok := list.([]any)
	if !ok {
		return nil, fmt.Errorf("providers: resource response field %q is not an array", resultsField)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		object, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, Record(object))
	}
	return records, nil
}

// Record is one decoded provider record.
type Record map[string]any

// String reads a nested scalar by path and renders it as trimmed text.
// Missing, null and non-scalar values read as "".
func (r Record) String(path ...string) string {
	var current any = map[string]any(r)
	for _, segment := range path {
		object, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = object[segment]
	}
	switch current.(type) {
	case nil, map[string]any, []any:
		return ""
	}
	return readAnyString(current)
}

// FirstPopulated returns the first non-empty value.
func FirstPopulated(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
