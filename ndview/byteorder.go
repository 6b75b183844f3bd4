package ndview

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// parallelSwapThreshold is the buffer size above which byte swapping is
// split across goroutines.
const parallelSwapThreshold = 1 << 20

// SwapBytes reverses the byte order of every element in place. The buffer
// length must be a multiple of elemSize. Buffers above the parallel
// threshold are split into element-aligned chunks processed concurrently.
func SwapBytes(buf []byte, elemSize int) {
	if elemSize <= 1 || len(buf) == 0 {
		return
	}
	if len(buf) < parallelSwapThreshold {
		swapRange(buf, elemSize)
		return
	}

	workers := runtime.NumCPU()
	elements := len(buf) / elemSize
	perWorker := (elements + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < elements; start += perWorker {
		end := start + perWorker
		if end > elements {
			end = elements
		}
		chunk := buf[start*elemSize : end*elemSize]
		g.Go(func() error {
			swapRange(chunk, elemSize)
			return nil
		})
	}
	// Workers never return an error; Wait is a join.
	_ = g.Wait()
}

func swapRange(buf []byte, elemSize int) {
	switch elemSize {
	case 4:
		for i := 0; i+4 <= len(buf); i += 4 {
			buf[i], buf[i+3] = buf[i+3], buf[i]
			buf[i+1], buf[i+2] = buf[i+2], buf[i+1]
		}
	case 8:
		for i := 0; i+8 <= len(buf); i += 8 {
			buf[i], buf[i+7] = buf[i+7], buf[i]
			buf[i+1], buf[i+6] = buf[i+6], buf[i+1]
			buf[i+2], buf[i+5] = buf[i+5], buf[i+2]
			buf[i+3], buf[i+4] = buf[i+4], buf[i+3]
		}
	default:
		for i := 0; i+elemSize <= len(buf); i += elemSize {
			for lo, hi := i, i+elemSize-1; lo < hi; lo, hi = lo+1, hi-1 {
				buf[lo], buf[hi] = buf[hi], buf[lo]
			}
		}
	}
}
