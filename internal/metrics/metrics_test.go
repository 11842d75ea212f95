package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/tours/:id", "404"))
	RecordHTTPRequest("GET", "/api/v1/tours/:id", 404, 3*time.Millisecond)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/tours/:id", "404"))

	if after-before != 1 {
		t.Fatalf("expected one request recorded, got %v", after-before)
	}
}

func TestRecordRatingRecalculation(t *testing.T) {
	ok := testutil.ToFloat64(RatingRecalculations.WithLabelValues("ok"))
	failed := testutil.ToFloat64(RatingRecalculations.WithLabelValues("error"))

	RecordRatingRecalculation(nil)
	RecordRatingRecalculation(errors.New("aggregate failed"))

	if testutil.ToFloat64(RatingRecalculations.WithLabelValues("ok"))-ok != 1 {
		t.Error("ok recalculation not counted")
	}
	if testutil.ToFloat64(RatingRecalculations.WithLabelValues("error"))-failed != 1 {
		t.Error("failed recalculation not counted")
	}
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(HTTPActiveRequests)
	TrackActiveRequest(true)
	if testutil.ToFloat64(HTTPActiveRequests) != start+1 {
		t.Fatal("gauge not incremented")
	}
	TrackActiveRequest(false)
	if testutil.ToFloat64(HTTPActiveRequests) != start {
		t.Fatal("gauge not decremented")
	}
}
