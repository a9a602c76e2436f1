package spatial

import "testing"

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// TestRangeQueryExcludesOutsideCities covers scenario S6: five Peruvian
// cities, a range query over Cusco/Puno's bounding box excludes the rest.
func TestRangeQueryExcludesOutsideCities(t *testing.T) {
	idx := New()
	const (
		lima     = 0
		cusco    = 1
		arequipa = 2
		puno     = 3
		trujillo = 4
	)
	idx.InsertPoint(lima, Point{-12.05, -77.04})
	idx.InsertPoint(cusco, Point{-13.53, -71.97})
	idx.InsertPoint(arequipa, Point{-16.41, -71.54})
	idx.InsertPoint(puno, Point{-15.84, -70.02})
	idx.InsertPoint(trujillo, Point{-8.11, -79.03})

	got := idx.RangeQuery(Rect{-16, -75, -12, -70})
	if len(got) != 2 || !contains(got, cusco) || !contains(got, puno) {
		t.Fatalf("range_query(-16,-75,-12,-70) = %v, want {cusco, puno}", got)
	}
	for _, excluded := range []int64{lima, arequipa, trujillo} {
		if contains(got, excluded) {
			t.Fatalf("range_query unexpectedly included city %d", excluded)
		}
	}
}

func TestKNNQueryOrdersByDistance(t *testing.T) {
	idx := New()
	idx.InsertPoint(0, Point{0, 0})
	idx.InsertPoint(1, Point{1, 1})
	idx.InsertPoint(2, Point{5, 5})

	got := idx.KNNQuery(Point{0, 0}, 2)
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("knn_query(0,0,2) = %v, want [0 1]", got)
	}
}

func TestDeleteRemovesFromRangeQuery(t *testing.T) {
	idx := New()
	idx.InsertPoint(0, Point{1, 1})
	idx.Delete(0, Rect{1, 1, 1, 1})

	got := idx.RangeQuery(Rect{0, 0, 2, 2})
	if len(got) != 0 {
		t.Fatalf("expected empty after delete, got %v", got)
	}
}
