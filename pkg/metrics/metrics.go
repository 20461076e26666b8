package metrics

import "github.com/uxmanz/ArcgisTerrain-Server/pkg/state"

type MetricsWriter interface {
	WriteTileState(*state.RequestState)
}

type NilMetricsWriter struct{}

func (_ *NilMetricsWriter) WriteTileState(reqState *state.RequestState) {}
