// Package metrics records protocol and HTTP API metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skycoin/stopwait/pkg/session"
)

// Recorder records transfer sessions and API requests.
type Recorder interface {
	ObserveSend(rep *session.SendReport, err error)
	ObserveReceive(rep *session.ReceiveReport, err error)
	Record(resTime time.Duration, hasErr bool)
}

type dummy struct{}

// NewDummy constructs a new dummy metrics recorder.
func NewDummy() Recorder {
	return &dummy{}
}

func (m *dummy) ObserveSend(*session.SendReport, error)       {}
func (m *dummy) ObserveReceive(*session.ReceiveReport, error) {}
func (m *dummy) Record(time.Duration, bool)                   {}

const (
	dirSend    = "send"
	dirReceive = "receive"
)

type prom struct {
	transfers      *prometheus.CounterVec
	bytes          *prometheus.CounterVec
	fragments      *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	datagrams      *prometheus.CounterVec
	checksumErrors *prometheus.CounterVec
	impaired       *prometheus.CounterVec
	retransmits    prometheus.Counter
	sequenceErrors prometheus.Counter
	timeouts       prometheus.Counter
	duplicates     prometheus.Counter

	reqCount prometheus.Counter
	errCount prometheus.Counter
	resTime  prometheus.Summary
}

// NewPrometheus constructs a new Prometheus metrics recorder registering
// its collectors with reg.
func NewPrometheus(service string, reg prometheus.Registerer) Recorder {
	f := promauto.With(reg)
	return &prom{
		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_transfers_total",
			Help: "The total number of transfer sessions by direction and result",
		}, []string{"direction", "result"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_payload_bytes_total",
			Help: "The total number of payload bytes of completed transfers",
		}, []string{"direction"}),
		fragments: f.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_fragments_total",
			Help: "The total number of fragments of completed transfers",
		}, []string{"direction"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    service + "_transfer_duration_seconds",
			Help:    "Transfer durations",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"direction"}),
		datagrams: f.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_datagrams_sent_total",
			Help: "The total number of data packets and acknowledgments written",
		}, []string{"direction"}),
		checksumErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_checksum_errors_total",
			Help: "The total number of datagrams that failed validation",
		}, []string{"direction"}),
		impaired: f.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_impaired_total",
			Help: "The total number of datagrams corrupted or dropped on purpose",
		}, []string{"direction", "kind"}),
		retransmits: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_retransmissions_total",
			Help: "The total number of data packet retransmissions",
		}),
		sequenceErrors: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_sequence_errors_total",
			Help: "The total number of valid acknowledgments carrying the wrong bit",
		}),
		timeouts: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_timeouts_total",
			Help: "The total number of retransmit timer expiries",
		}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_duplicates_total",
			Help: "The total number of duplicate data packets received",
		}),
		reqCount: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_request_total",
			Help: "The total number of processed requests",
		}),
		errCount: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_errors_total",
			Help: "The total number of 500 responses",
		}),
		resTime: f.NewSummary(prometheus.SummaryOpts{
			Name: service + "_response_time",
			Help: "Response times",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *prom) ObserveSend(rep *session.SendReport, err error) {
	m.transfers.WithLabelValues(dirSend, result(err)).Inc()
	if rep == nil {
		return
	}
	s := rep.Stats
	m.datagrams.WithLabelValues(dirSend).Add(float64(s.DataSent))
	m.checksumErrors.WithLabelValues(dirSend).Add(float64(s.ChecksumErrors))
	m.impaired.WithLabelValues(dirSend, "corrupted").Add(float64(s.Corrupted))
	m.impaired.WithLabelValues(dirSend, "dropped").Add(float64(s.Dropped))
	m.retransmits.Add(float64(s.Retransmissions))
	m.sequenceErrors.Add(float64(s.SequenceErrors))
	m.timeouts.Add(float64(s.Timeouts))
	if err == nil {
		m.bytes.WithLabelValues(dirSend).Add(float64(rep.Size))
		m.fragments.WithLabelValues(dirSend).Add(float64(rep.Fragments))
		m.duration.WithLabelValues(dirSend).Observe(rep.Duration.Seconds())
	}
}

func (m *prom) ObserveReceive(rep *session.ReceiveReport, err error) {
	m.transfers.WithLabelValues(dirReceive, result(err)).Inc()
	if rep == nil {
		return
	}
	s := rep.Stats
	m.datagrams.WithLabelValues(dirReceive).Add(float64(s.AcksSent))
	m.checksumErrors.WithLabelValues(dirReceive).Add(float64(s.ChecksumErrors))
	m.impaired.WithLabelValues(dirReceive, "corrupted").Add(float64(s.Corrupted))
	m.impaired.WithLabelValues(dirReceive, "dropped").Add(float64(s.Dropped))
	m.duplicates.Add(float64(s.Duplicates))
	if err == nil {
		m.bytes.WithLabelValues(dirReceive).Add(float64(rep.Size))
		m.fragments.WithLabelValues(dirReceive).Add(float64(rep.Fragments))
		m.duration.WithLabelValues(dirReceive).Observe(rep.Duration.Seconds())
	}
}

func (m *prom) Record(resTime time.Duration, hasErr bool) {
	m.reqCount.Inc()
	m.resTime.Observe(resTime.Seconds())
	if hasErr {
		m.errCount.Inc()
	}
}

// Handler provides metrics middleware.
func Handler(m Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if m == nil {
			next.ServeHTTP(w, req)
			return
		}

		wrapW := &wrapResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		startTime := time.Now()
		next.ServeHTTP(wrapW, req)
		m.Record(time.Since(startTime), wrapW.statusCode == http.StatusInternalServerError)
	})
}

type wrapResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *wrapResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
