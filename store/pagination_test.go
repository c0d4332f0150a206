package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"zero values get defaults", Page{}, Page{Page: 1, Limit: 20}},
		{"negative values get defaults", Page{Page: -3, Limit: -1}, Page{Page: 1, Limit: 20}},
		{"limit capped at maximum", Page{Page: 2, Limit: 500}, Page{Page: 2, Limit: 100}},
		{"valid values unchanged", Page{Page: 3, Limit: 25}, Page{Page: 3, Limit: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, Page{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, Page{Page: 3, Limit: 10}.Offset())
	assert.Equal(t, 0, Page{}.Offset())
}

func TestNewPageInfo(t *testing.T) {
	tests := []struct {
		name  string
		page  Page
		total int64
		want  PageInfo
	}{
		{
			name:  "empty result set",
			page:  Page{Page: 1, Limit: 10},
			total: 0,
			want:  PageInfo{Total: 0, Page: 1, Limit: 10, TotalPages: 0, HasNext: false, HasPrevious: false},
		},
		{
			name:  "first of three pages",
			page:  Page{Page: 1, Limit: 10},
			total: 25,
			want:  PageInfo{Total: 25, Page: 1, Limit: 10, TotalPages: 3, HasNext: true, HasPrevious: false},
		},
		{
			name:  "middle page",
			page:  Page{Page: 2, Limit: 10},
			total: 25,
			want:  PageInfo{Total: 25, Page: 2, Limit: 10, TotalPages: 3, HasNext: true, HasPrevious: true},
		},
		{
			name:  "last page",
			page:  Page{Page: 3, Limit: 10},
			total: 25,
			want:  PageInfo{Total: 25, Page: 3, Limit: 10, TotalPages: 3, HasNext: false, HasPrevious: true},
		},
		{
			name:  "exact multiple of limit",
			page:  Page{Page: 2, Limit: 10},
			total: 20,
			want:  PageInfo{Total: 20, Page: 2, Limit: 10, TotalPages: 2, HasNext: false, HasPrevious: true},
		},
		{
			name:  "page beyond the data",
			page:  Page{Page: 9, Limit: 10},
			total: 25,
			want:  PageInfo{Total: 25, Page: 9, Limit: 10, TotalPages: 3, HasNext: false, HasPrevious: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPageInfo(tt.page, tt.total))
		})
	}
}
