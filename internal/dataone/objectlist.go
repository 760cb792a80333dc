package dataone

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"mnstat/internal/model"
)

const DefaultPageSize = 1000

// ListerOptions bounds a listObjects iteration.
type ListerOptions struct {
	PageSize   int
	Offset     int
	MaxEntries int // <= 0 means unlimited
	FromDate   time.Time
	ToDate     time.Time
}

// Lister pages through a node's listObjects endpoint and yields one
// ObjectInfo at a time via Next.
type Lister struct {
	client *Client
	url    string
	opts   ListerOptions

	page       []model.ObjectInfo
	pageOffset int
	offset     int // absolute position in the node's listing
	total      int
	started    bool
}

// NewLister creates a lister for the given listObjects URL.
func NewLister(client *Client, listURL string, opts ListerOptions) *Lister {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxEntries > 0 && opts.MaxEntries < opts.PageSize {
		opts.PageSize = opts.MaxEntries
	}
	return &Lister{
		client: client,
		url:    listURL,
		opts:   opts,
		offset: opts.Offset,
	}
}

// Total returns the total record count reported by the node. Valid
// after the first call to Next.
func (l *Lister) Total() int {
	return l.total
}

// Next returns the next object record, or io.EOF when the listing is
// exhausted or MaxEntries was reached.
func (l *Lister) Next(ctx context.Context) (model.ObjectInfo, error) {
	if !l.started {
		if err := l.getPage(ctx); err != nil {
			return model.ObjectInfo{}, err
		}
		l.started = true
	}
	if l.opts.MaxEntries > 0 && l.offset >= l.opts.Offset+l.opts.MaxEntries {
		return model.ObjectInfo{}, io.EOF
	}
	if l.pageOffset >= len(l.page) {
		if l.offset >= l.total {
			return model.ObjectInfo{}, io.EOF
		}
		if err := l.getPage(ctx); err != nil {
			return model.ObjectInfo{}, err
		}
		if len(l.page) == 0 {
			return model.ObjectInfo{}, io.EOF
		}
	}

	entry := l.page[l.pageOffset]
	l.pageOffset++
	l.offset++
	return entry, nil
}

func (l *Lister) getPage(ctx context.Context) error {
	params := url.Values{
		"start": []string{strconv.Itoa(l.offset)},
		"count": []string{strconv.Itoa(l.opts.PageSize)},
	}
	if !l.opts.FromDate.IsZero() {
		params.Set("fromDate", FormatTime(l.opts.FromDate))
	}
	if !l.opts.ToDate.IsZero() {
		params.Set("toDate", FormatTime(l.opts.ToDate))
	}

	res := l.client.Get(ctx, l.url, params)
	if !res.OK() {
		return fmt.Errorf("listObjects %s: status %d %s", l.url, res.Status, res.Message)
	}

	list, err := ParseObjectList(res.Body)
	if err != nil {
		return err
	}
	l.total = list.Total
	l.page = list.Objects
	l.pageOffset = 0
	return nil
}
