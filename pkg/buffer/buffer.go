package buffer

import "bytes"

// Manager hands out byte buffers for reading relayed tile bodies. A
// bpool.SizedBufferPool satisfies it when pooling is configured;
// OnDemand simply allocates.
type Manager interface {
	Get() *bytes.Buffer
	Put(*bytes.Buffer)
}

type OnDemand struct{}

func (m *OnDemand) Get() *bytes.Buffer {
	return &bytes.Buffer{}
}

func (m *OnDemand) Put(buf *bytes.Buffer) {
}
