package domain

import "testing"

func TestNewPage(t *testing.T) {
	tests := []struct {
		name          string
		count         int
		limit, offset int
		next, prev    *int
	}{
		{name: "single page", count: 5, limit: 20, offset: 0},
		{name: "first of many", count: 50, limit: 20, offset: 0, next: intPtr(20)},
		{name: "middle page", count: 50, limit: 20, offset: 20, next: intPtr(40), prev: intPtr(0)},
		{name: "last page", count: 50, limit: 20, offset: 40, prev: intPtr(20)},
		{name: "short offset clamps previous to zero", count: 30, limit: 20, offset: 10, prev: intPtr(0)},
		{name: "empty result set", count: 0, limit: 20, offset: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPage(make([]int, 0), tt.count, tt.limit, tt.offset)
			if !ptrEq(page.Next, tt.next) {
				t.Errorf("Next = %v, want %v", ptrStr(page.Next), ptrStr(tt.next))
			}
			if !ptrEq(page.Previous, tt.prev) {
				t.Errorf("Previous = %v, want %v", ptrStr(page.Previous), ptrStr(tt.prev))
			}
			if page.Count != tt.count {
				t.Errorf("Count = %d, want %d", page.Count, tt.count)
			}
		})
	}
}

func TestNewPageNilResults(t *testing.T) {
	page := NewPage[int](nil, 0, 20, 0)
	if page.Results == nil {
		t.Fatal("Results should serialize as [], not null")
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultPageLimit, 0},
		{-5, -3, DefaultPageLimit, 0},
		{10, 40, 10, 40},
		{500, 0, MaxPageLimit, 0},
	}
	for _, tt := range tests {
		limit, offset := ClampPage(tt.limit, tt.offset)
		if limit != tt.wantLimit || offset != tt.wantOffset {
			t.Errorf("ClampPage(%d, %d) = (%d, %d), want (%d, %d)",
				tt.limit, tt.offset, limit, offset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func intPtr(v int) *int { return &v }

func ptrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ptrStr(p *int) interface{} {
	if p == nil {
		return "<nil>"
	}
	return *p
}
