package utils

import (
	"bytes"
	"sync"
)

type bufferPool struct {
	pool     sync.Pool
	initSize int
}

func newBufferPool(initSize int) *bufferPool {
	return &bufferPool{initSize: initSize}
}

func (p *bufferPool) get() *bytes.Buffer {
	if buf := p.pool.Get(); buf != nil {
		return buf.(*bytes.Buffer)
	}
	return bytes.NewBuffer(make([]byte, 0, p.initSize))
}

func (p *bufferPool) put(buf *bytes.Buffer) {
	buf.Reset()
	if buf.Cap() <= maxPooledBufferSize {
		p.pool.Put(buf)
	}
}
