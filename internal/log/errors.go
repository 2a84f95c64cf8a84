package log

import "errors"

// ErrFullSegment signals that a segment has no room left for a candidate
// append. Partition handles it internally by rolling a new active segment;
// it never reaches a caller of Partition.
var ErrFullSegment = errors.New("log: segment is full")
