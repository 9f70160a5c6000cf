// Package buffer provides a thread-safe generic ring buffer.
//
// The ring buffer keeps a sliding window of the most recent data: when the
// buffer is full, new writes overwrite the oldest elements instead of
// blocking. This makes it suitable as a real-time audio FIFO, where stale
// samples are worth less than fresh ones.
//
// Example:
//
//	rb := buffer.Ring[byte](8192)
//	rb.Write(pcm)
//	n, _ := rb.TryRead(out) // non-blocking, n == 0 when empty
package buffer
