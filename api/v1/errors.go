// this package renders the core's domain errors as rich gRPC statuses so a
// networked wrapper around the partition (out of scope here) can propagate
// them across the wire without a translation layer
package api

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrOffsetOutOfRange reports a lookup for an offset the partition has
// never assigned.
type ErrOffsetOutOfRange struct {
	Offset uint64
}

func (e ErrOffsetOutOfRange) GRPCStatus() *status.Status {
	st := status.New(
		codes.NotFound,
		fmt.Sprintf("offset out of range: %d", e.Offset),
	)
	msg := fmt.Sprintf(
		"the requested offset is outside the partition's assigned range: %d",
		e.Offset,
	)
	details := &errdetails.LocalizedMessage{Locale: "en-US", Message: msg}
	withDetails, err := st.WithDetails(details)
	if err != nil {
		return st
	}
	return withDetails
}

func (e ErrOffsetOutOfRange) Error() string {
	return e.GRPCStatus().Err().Error()
}

// ErrCorruptRecord wraps a record codec failure encountered while serving
// a read, identifying which offset was being looked up when it happened.
type ErrCorruptRecord struct {
	Offset uint64
	Cause  error
}

func (e ErrCorruptRecord) GRPCStatus() *status.Status {
	return status.New(
		codes.DataLoss,
		fmt.Sprintf("corrupt record near offset %d: %v", e.Offset, e.Cause),
	)
}

func (e ErrCorruptRecord) Error() string {
	return e.GRPCStatus().Err().Error()
}

func (e ErrCorruptRecord) Unwrap() error {
	return e.Cause
}

// ErrInvalidSegmentFile reports a filename in a partition's directory that
// does not match the `{base_offset:020}.{log,index}` naming convention.
type ErrInvalidSegmentFile struct {
	Name string
}

func (e ErrInvalidSegmentFile) GRPCStatus() *status.Status {
	return status.New(
		codes.FailedPrecondition,
		fmt.Sprintf("log file name not compliant: %q", e.Name),
	)
}

func (e ErrInvalidSegmentFile) Error() string {
	return e.GRPCStatus().Err().Error()
}
