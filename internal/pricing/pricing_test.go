package pricing

import "testing"

func TestOrderTotal(t *testing.T) {
	tests := []struct {
		name       string
		priceCents []int64
		want       int64
	}{
		{
			name:       "example from the catalog",
			priceCents: []int64{1000, 500},
			// (10.00 + 5.00) с налогом 10% = 16.50, половина округляется вверх
			want: 17,
		},
		{
			name:       "no items",
			priceCents: nil,
			want:       0,
		},
		{
			name:       "single item below half",
			priceCents: []int64{400},
			// 4.40 -> 4
			want: 4,
		},
		{
			name:       "single item exactly half",
			priceCents: []int64{500},
			// 5.50 -> 6
			want: 6,
		},
		{
			name:       "fractional cents kept until rounding",
			priceCents: []int64{999},
			// 10.989 -> 11
			want: 11,
		},
		{
			name:       "duplicate items",
			priceCents: []int64{250, 250, 250},
			// 8.25 -> 8
			want: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OrderTotal(tt.priceCents)
			if got != tt.want {
				t.Fatalf("OrderTotal(%v) = %d, want %d", tt.priceCents, got, tt.want)
			}
		})
	}
}
