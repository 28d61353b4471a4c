package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/skycoin/stopwait/pkg/arq"
	"github.com/skycoin/stopwait/pkg/session"
)

func TestPrometheus_ObserveSend(t *testing.T) {
	m := NewPrometheus("test", prometheus.NewRegistry()).(*prom)

	m.ObserveSend(&session.SendReport{
		Size:      2500,
		Fragments: 3,
		Duration:  20 * time.Millisecond,
		Stats:     arq.SenderStats{DataSent: 5, Retransmissions: 2, ChecksumErrors: 1, SequenceErrors: 1, Corrupted: 1},
	}, nil)
	m.ObserveSend(&session.SendReport{Stats: arq.SenderStats{DataSent: 4, Timeouts: 3}}, errors.New("failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfers.WithLabelValues(dirSend, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfers.WithLabelValues(dirSend, "error")))
	assert.Equal(t, 2500.0, testutil.ToFloat64(m.bytes.WithLabelValues(dirSend)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fragments.WithLabelValues(dirSend)))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.datagrams.WithLabelValues(dirSend)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retransmits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sequenceErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.timeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.impaired.WithLabelValues(dirSend, "corrupted")))
}

func TestPrometheus_ObserveReceive(t *testing.T) {
	m := NewPrometheus("test", prometheus.NewRegistry()).(*prom)

	m.ObserveReceive(&session.ReceiveReport{
		Size:      2500,
		Fragments: 3,
		Stats:     arq.ReceiverStats{Received: 5, Accepted: 3, Duplicates: 1, ChecksumErrors: 1, AcksSent: 4, Dropped: 1},
	}, nil)
	m.ObserveReceive(nil, errors.New("failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfers.WithLabelValues(dirReceive, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfers.WithLabelValues(dirReceive, "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.datagrams.WithLabelValues(dirReceive)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checksumErrors.WithLabelValues(dirReceive)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.impaired.WithLabelValues(dirReceive, "dropped")))
}

func TestHandler(t *testing.T) {
	m := NewPrometheus("test", prometheus.NewRegistry()).(*prom)

	h := Handler(m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	for _, path := range []string{"/", "/fail", "/"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.reqCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errCount))

	rec := httptest.NewRecorder()
	Handler(nil, http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDummy(t *testing.T) {
	m := NewDummy()
	m.ObserveSend(nil, nil)
	m.ObserveReceive(nil, nil)
	m.Record(time.Second, true)
}
