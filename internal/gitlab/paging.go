package gitlab

import (
	gl "gitlab.com/gitlab-org/api/client-go"
)

// AllPagesPerPage is the page size used when a listing collects every page.
const AllPagesPerPage = 100

// ListFunc issues one page of a listing. page is nil for the first page.
type ListFunc[T any] func(page gl.RequestOptionFunc) ([]T, *gl.Response, error)

// CollectAll follows the pagination of a listing until the last page and
// returns every item. Errors go through Check with op, using the response of
// the page that failed.
func CollectAll[T any](op string, list ListFunc[T]) ([]T, error) {
	var last *gl.Response
	var out []T
	for item, err := range gl.Scan2(func(p gl.PaginationOptionFunc) ([]T, *gl.Response, error) {
		items, resp, err := list(p)
		last = resp
		return items, resp, err
	}) {
		if err != nil {
			return nil, Check(op, last, err)
		}
		out = append(out, item)
	}
	return out, nil
}
