// Package level keeps moving-window statistics over dB-scale signal levels:
// a circular buffer of the most recent samples, their mean and kurtosis, and
// a histogram over a fixed dB range.
//
// A Statistics value has a single writer, normally the real-time audio
// callback, which calls AddSample without locking or allocating. Readers may
// call the accessors concurrently. Reads are not atomic as a whole: a
// snapshot can mix samples from before and after a concurrent AddSample.
// That is acceptable for display statistics and never produces a data race.
package level
