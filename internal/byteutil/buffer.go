package byteutil

import (
	"bytes"
	"sync"
)

var bytesBuffer = sync.Pool{
	New: func() interface{} { return &bytes.Buffer{} },
}

func GetBytesBuf() *bytes.Buffer {
	return bytesBuffer.Get().(*bytes.Buffer)
}

func PutBytesBuf(p *bytes.Buffer) {
	bytesBuffer.Put(p)
}
