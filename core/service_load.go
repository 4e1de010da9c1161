package core

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Load fetches the first page of every category the provider exposes and
// normalizes the records into items. Categories are fetched concurrently; a
// failing category is reported in Failures and contributes no items while
// the others still load. Items keep category order, then response order.
func (s *Service) Load(ctx context.Context, providerID string, credential Credential) (result LoadResult, err error) {
	startedAt := s.now()
	providerID = normalizeProviderID(providerID)
	fields := map[string]any{
		"provider_id": providerID,
		"user_id":     credential.UserID,
		"org_id":      credential.OrgID,
	}
	defer func() {
		fields["items"] = len(result.Items)
		fields["failed_categories"] = len(result.Failures)
		s.observeOperation(ctx, startedAt, "load", err, fields)
	}()

	if strings.TrimSpace(credential.AccessToken) == "" {
		err = s.mapError(NewBadInputError("credential access token is required"))
		return LoadResult{}, err
	}
	provider, err := s.resolveProvider(providerID)
	if err != nil {
		return LoadResult{}, err
	}

	categories := provider.Categories()
	pages := make([][]IntegrationItem, len(categories))
	failures := make([]*CategoryFailure, len(categories))
	limit := s.config.Load.PageLimit

	var group errgroup.Group
	group.SetLimit(s.config.Load.Concurrency)
	for index, category := range categories {
		group.Go(func() error {
			items, fetchErr := provider.FetchCategory(ctx, category, credential, limit)
			if fetchErr != nil {
				mapped := s.mapError(fetchErr)
				failures[index] = &CategoryFailure{
					Category: category,
					Err:      mapped,
					Message:  mapped.Error(),
				}
				return nil
			}
			if len(items) > limit {
				items = items[:limit]
			}
			pages[index] = items
			return nil
		})
	}
	_ = group.Wait()

	result = LoadResult{Items: []IntegrationItem{}}
	for index, category := range categories {
		if failure := failures[index]; failure != nil {
			result.Failures = append(result.Failures, *failure)
			s.logWarn(ctx, "category load failed", map[string]any{
				"provider_id": providerID,
				"category":    category.Tag,
				"error":       failure.Message,
			})
			continue
		}
		result.Items = append(result.Items, pages[index]...)
	}
	return result, nil
}
