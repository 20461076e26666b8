package metrics

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/log"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
)

type StatsdMetricsWriter struct {
	addr   *net.UDPAddr
	prefix string
	logger log.JsonLogger
	queue  chan *state.RequestState
}

func (smw *StatsdMetricsWriter) Process(reqState *state.RequestState) {
	conn, err := net.DialUDP("udp", nil, smw.addr)
	if err != nil {
		smw.logger.Error(log.LogCategory_Metrics, "Metrics Writer failed to connect to %s: %s\n", smw.addr, err)
		return
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	defer w.Flush()

	psw := prefixedStatsdWriter{
		prefix: smw.prefix,
		w:      w,
	}

	psw.WriteCount("count", 1)

	respState := reqState.ResponseState
	if respState > state.ResponseState_Nil && respState < state.ResponseState_Count {
		psw.WriteCount(fmt.Sprintf("responsestate.%s", respState.String()), 1)
	} else {
		smw.logger.Error(log.LogCategory_InvalidCodeState, "Invalid response state: %d", int32(respState))
	}

	fetchState := reqState.FetchState
	if fetchState > state.FetchState_Nil && fetchState < state.FetchState_Count {
		psw.WriteCount(fmt.Sprintf("fetchstate.%s", fetchState.String()), 1)
	}

	psw.WriteTimer("timers.parse", reqState.Duration.Parse)
	psw.WriteTimer("timers.cache-lookup", reqState.Duration.CacheLookup)
	psw.WriteTimer("timers.fetch", reqState.Duration.Fetch)
	psw.WriteTimer("timers.response-write", reqState.Duration.RespWrite)
	psw.WriteTimer("timers.total", reqState.Duration.Total)

	if responseSize := reqState.ResponseSize; responseSize > 0 {
		psw.WriteGauge("response-size", responseSize)
	}

	psw.WriteBool("counts.cache-hit", reqState.CacheHit)
	psw.WriteBool("errors.response-write-error", reqState.IsResponseWriteError)
	psw.WriteBool("errors.cache-lookup-error", reqState.IsCacheLookupError)
}

func (smw *StatsdMetricsWriter) WriteTileState(reqState *state.RequestState) {
	select {
	case smw.queue <- reqState:
	default:
		smw.logger.Warning(log.LogCategory_Metrics, "Metrics Writer queue full\n")
	}
}

func NewStatsdMetricsWriter(addr *net.UDPAddr, metricsPrefix string, logger log.JsonLogger) MetricsWriter {
	maxQueueSize := 4096
	queue := make(chan *state.RequestState, maxQueueSize)

	smw := &StatsdMetricsWriter{
		addr:   addr,
		prefix: metricsPrefix,
		logger: logger,
		queue:  queue,
	}

	go func(smw *StatsdMetricsWriter) {
		for reqState := range smw.queue {
			smw.Process(reqState)
		}
	}(smw)

	return smw
}

func makeMetricPrefix(prefix string, metric string) string {
	if prefix == "" {
		return metric
	} else {
		return fmt.Sprintf("%s.%s", prefix, metric)
	}
}

func makeStatsdLineCount(prefix string, metric string, value int) string {
	return fmt.Sprintf("%s:%d|c\n", makeMetricPrefix(prefix, metric), value)
}

func makeStatsdLineGauge(prefix string, metric string, value int) string {
	return fmt.Sprintf("%s:%d|g\n", makeMetricPrefix(prefix, metric), value)
}

func makeStatsdLineTimer(prefix string, metric string, value time.Duration) string {
	millis := value.Milliseconds()
	return fmt.Sprintf("%s:%d|ms\n", makeMetricPrefix(prefix, metric), millis)
}

type prefixedStatsdWriter struct {
	prefix string
	w      io.Writer
}

func (psw *prefixedStatsdWriter) WriteCount(metric string, value int) {
	psw.w.Write([]byte(makeStatsdLineCount(psw.prefix, metric, value)))
}

func (psw *prefixedStatsdWriter) WriteGauge(metric string, value int) {
	psw.w.Write([]byte(makeStatsdLineGauge(psw.prefix, metric, value)))
}

func (psw *prefixedStatsdWriter) WriteBool(metric string, value bool) {
	if value {
		psw.WriteCount(metric, 1)
	}
}

func (psw *prefixedStatsdWriter) WriteTimer(metric string, value time.Duration) {
	psw.w.Write([]byte(makeStatsdLineTimer(psw.prefix, metric, value)))
}
