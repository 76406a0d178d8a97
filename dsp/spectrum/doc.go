// Package spectrum computes a live power spectrum from a stereo stream.
//
// An [Engine] is fed by a single real-time writer through [Engine.Process].
// Each call downmixes to mono, appends to a sliding history of the last N
// samples, windows the history and transforms it. The resulting N/2+1 power
// bins are published into one half of a double buffer. A single consumer
// collects the most recent publication with [Engine.ComputeMagnitudes].
//
// The two halves are coordinated by one atomic control word. The writer never
// blocks and never allocates. When the consumer is slow, intermediate
// publications are overwritten. When the control word is found busy, the
// block is dropped and counted.
//
// Power values are linear and normalized so a full-scale sine reads 1.0
// (0 dB). Conversion to decibels, clamping to [MinimumDB], and resampling
// onto a logarithmic display axis are consumer-side concerns handled by
// [PowerToDB], [Axis] and [Curve].
package spectrum
