package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use it to release a producer goroutine once its output is no longer
// wanted, for example after playback was cancelled.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
