// Package reaper runs the periodic deletion of expired credential rows.
//
// Deletion is storage hygiene only: expired rows are already rejected by
// every lookup. The loop is fully independent of request handling and its
// ticker is cancelled by Stop without waiting for the next tick.
package reaper
