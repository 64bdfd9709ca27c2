// Package bench
// Author: momentics <momentics@gmail.com>
//
// Orchestration of a copy benchmark: one IterationRunner per run drives
// measured iterations against a SpinPool of persistent workers, with the
// calling goroutine taking part in every copy as agent 0.
package bench
