package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(rowsDecoded.WithLabelValues("ProtobufList"))
	RecordRowsDecoded("ProtobufList", 3)
	RecordRowsCounted("ProtobufList", 3)
	RecordFrame("ProtobufList")
	RecordDecodeError("ProtobufList", "framing")
	RecordSchemaCacheLookup(true)
	RecordSchemaCacheLookup(false)

	if got := testutil.ToFloat64(rowsDecoded.WithLabelValues("ProtobufList")); got != before+3 {
		t.Fatalf("rows decoded = %v, want %v", got, before+3)
	}
	log.Debug().Msg("observability/metrics: registration idempotent and recording paths executed")
}
