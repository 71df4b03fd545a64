package bridge

import "sync"

// bufferPools holds one sync.Pool per distinct buffer size. Unlike the
// teacher's single fixed-1518-byte pool (switch/pool.go), interface MTUs
// vary (§3: "sizeof(ethernet_header) + mtu"), so buffers are pooled by the
// exact size requested rather than a single constant.
var bufferPools sync.Map // map[int]*sync.Pool

func getBuffer(size int) []byte {
	v, _ := bufferPools.LoadOrStore(size, &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, size)
			return &buf
		},
	})
	buf := v.(*sync.Pool).Get().(*[]byte)
	return (*buf)[:size]
}

func putBuffer(buf []byte) {
	size := cap(buf)
	if size == 0 {
		return
	}
	v, ok := bufferPools.Load(size)
	if !ok {
		return
	}
	buf = buf[:size]
	v.(*sync.Pool).Put(&buf)
}
