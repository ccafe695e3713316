package lookerclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lookervault/lookervault/codec"
	"github.com/lookervault/lookervault/types"
)

// IterateOptions parameterizes a listing call. BatchSize, if zero, uses
// the server default page size.
type IterateOptions struct {
	Fields       []string
	BatchSize    int
	UpdatedAfter *time.Time
	// FolderID is only honored server-side for content types where
	// types.ContentType.SupportsServerFolderFilter() is true; callers
	// must apply client-side filtering for other types (spec §4.4).
	FolderID string
	Offset   int64
}

// Iterator yields raw item maps from one listing call in pagination order.
// It is finite and non-restartable: once Next reports (_, false, nil),
// the Iterator is exhausted and must not be reused.
type Iterator struct {
	client      *Client
	contentType types.ContentType
	opts        IterateOptions

	buffer []codec.Value
	pos    int
	offset int64
	done   bool
}

// Iterate begins a lazy, paginated listing of contentType. Each Next call
// fetches another server page once the local buffer is drained.
func (c *Client) Iterate(contentType types.ContentType, opts IterateOptions) *Iterator {
	return &Iterator{
		client:      c,
		contentType: contentType,
		opts:        opts,
		offset:      opts.Offset,
	}
}

// Next returns the next raw item map, or (_, false, nil) once the listing
// is exhausted.
func (it *Iterator) Next(ctx context.Context) (codec.Value, bool, error) {
	if it.pos < len(it.buffer) {
		v := it.buffer[it.pos]
		it.pos++
		return v, true, nil
	}
	if it.done {
		return codec.Value{}, false, nil
	}

	page, err := it.client.fetchPage(ctx, it.contentType, it.opts, it.offset)
	if err != nil {
		return codec.Value{}, false, err
	}
	if len(page) == 0 {
		it.done = true
		return codec.Value{}, false, nil
	}

	it.buffer = page
	it.pos = 1
	it.offset += int64(len(page))
	return page[0], true, nil
}

// fetchPage performs one GET against the type's collection endpoint with
// the listing parameters the spec describes (fields, batch_size/limit,
// updated_after, offset, and server-side folder_id where supported).
func (c *Client) fetchPage(ctx context.Context, t types.ContentType, opts IterateOptions, offset int64) ([]codec.Value, error) {
	endpoint, err := endpointFor(t)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if len(opts.Fields) > 0 {
		joined := ""
		for i, f := range opts.Fields {
			if i > 0 {
				joined += ","
			}
			joined += f
		}
		q.Set("fields", joined)
	}
	if opts.BatchSize > 0 {
		q.Set("limit", strconv.Itoa(opts.BatchSize))
	}
	q.Set("offset", strconv.FormatInt(offset, 10))
	if opts.UpdatedAfter != nil {
		q.Set("updated_after", opts.UpdatedAfter.UTC().Format(time.RFC3339))
	}
	if opts.FolderID != "" && t.SupportsServerFolderFilter() {
		q.Set("folder_id", opts.FolderID)
	}

	path := "/" + endpoint
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := c.doJSON(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	if resp.Kind == codec.KindNull {
		return nil, nil
	}
	if resp.Kind != codec.KindArray {
		return nil, fmt.Errorf("lookerclient: list response for %s is not an array", t)
	}
	return resp.Array, nil
}
