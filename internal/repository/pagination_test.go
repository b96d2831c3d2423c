package repository

import "testing"

func TestNormalizePageRequest(t *testing.T) {
	tests := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{name: "zero value gets defaults", in: PageRequest{}, want: PageRequest{Page: DefaultPage, PageSize: DefaultPageSize}},
		{name: "negative page floored", in: PageRequest{Page: -3, PageSize: 25}, want: PageRequest{Page: DefaultPage, PageSize: 25}},
		{name: "negative size defaulted", in: PageRequest{Page: 4, PageSize: -10}, want: PageRequest{Page: 4, PageSize: DefaultPageSize}},
		{name: "oversized page capped", in: PageRequest{Page: 1, PageSize: MaxPageSize * 3}, want: PageRequest{Page: 1, PageSize: MaxPageSize}},
		{name: "in range untouched", in: PageRequest{Page: 7, PageSize: 50}, want: PageRequest{Page: 7, PageSize: 50}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizePageRequest(tc.in); got != tc.want {
				t.Fatalf("normalizePageRequest(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestCalcTotalPages(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{total: 0, pageSize: 20, want: 0},
		{total: 5, pageSize: 0, want: 0},
		{total: 1, pageSize: 20, want: 1},
		{total: 40, pageSize: 20, want: 2},
		{total: 41, pageSize: 20, want: 3},
	}
	for _, tc := range tests {
		if got := calcTotalPages(tc.total, tc.pageSize); got != tc.want {
			t.Fatalf("calcTotalPages(%d, %d) = %d, want %d", tc.total, tc.pageSize, got, tc.want)
		}
	}
}

func FuzzNormalizePageRequestInvariants(f *testing.F) {
	f.Add(0, 0)
	f.Add(-1, -1)
	f.Add(3, 50)
	f.Add(10, MaxPageSize+1)

	f.Fuzz(func(t *testing.T, page, pageSize int) {
		got := normalizePageRequest(PageRequest{Page: page, PageSize: pageSize})
		if got.Page < 1 {
			t.Fatalf("page must be >= 1, got %d", got.Page)
		}
		if got.PageSize < 1 || got.PageSize > MaxPageSize {
			t.Fatalf("page size out of bounds: %d", got.PageSize)
		}
	})
}

func FuzzCalcTotalPagesCeiling(f *testing.F) {
	f.Add(int64(0), 10)
	f.Add(int64(1), 20)
	f.Add(int64(41), 20)
	f.Add(int64(1)<<40, 1)

	f.Fuzz(func(t *testing.T, total int64, pageSize int) {
		got := calcTotalPages(total, pageSize)
		if total <= 0 || pageSize <= 0 {
			if got != 0 {
				t.Fatalf("expected 0 pages, got %d (total=%d pageSize=%d)", got, total, pageSize)
			}
			return
		}
		lower := int64(got-1) * int64(pageSize)
		upper := int64(got) * int64(pageSize)
		if lower >= total || total > upper {
			t.Fatalf("ceiling invariant broken: pages=%d total=%d pageSize=%d", got, total, pageSize)
		}
	})
}
