package services

import (
	"context"
	"fmt"

	"github.com/lessonbook/payments-backend/pkg/processor"
)

// PageFetcher fetches the page that starts after the given record id ("" = first page)
type PageFetcher[T any] func(ctx context.Context, startingAfter string) (*processor.Page[T], error)

// CollectAll walks a cursor-paginated list until the processor reports no more pages.
// The cursor for each request is the id of the last record of the previous page, so
// the result keeps the processor's order. Records created or deleted inside the window
// while the walk is running can be skipped or repeated; callers accept that.
// Any failed page aborts the walk and no partial result is returned.
func CollectAll[T any](ctx context.Context, fetch PageFetcher[T], idOf func(T) string) ([]T, error) {
	var (
		all    []T
		cursor string
		pages  int
	)

	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", pages+1, err)
		}
		pages++

		all = append(all, page.Data...)

		// An empty page with has_more set would never advance the cursor
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		cursor = idOf(page.Data[len(page.Data)-1])
	}
}
