package cluster

import (
	"fmt"
	"sort"
)

// ParseError reports a malformed topology reply. A fetch that hits a
// ParseError is discarded as a whole, partial topologies are never kept.
type ParseError struct {
	Reason string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("topology parse error: %s", e.Reason)
}

func newParseError(format string, args ...interface{}) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// KeyResolutionError reports a key that cannot be mapped to any master under
// the current topology. It signals a slot table the cache believes is current
// but that does not actually cover all slots.
type KeyResolutionError struct {
	Key string
}

// Error implements the error interface
func (e *KeyResolutionError) Error() string {
	return fmt.Sprintf("cannot determine cluster node for key '%s', bad topology?", e.Key)
}

// PartialError reports a fan-out where a subset of the targeted nodes failed.
// Results holds the replies of the nodes that succeeded, Failures the error
// per failed node address. Returned only by read-style aggregations, write
// broadcasts promote any node failure to a whole-operation failure.
type PartialError struct {
	Results  map[string]interface{}
	Failures map[string]error
}

// Error implements the error interface
func (e *PartialError) Error() string {
	addrs := make([]string, 0, len(e.Failures))
	for addr := range e.Failures {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return fmt.Sprintf("%d of %d nodes failed: %v", len(e.Failures), len(e.Failures)+len(e.Results), addrs)
}

// UnsupportedError reports an operation that is structurally invalid in
// cluster mode and was rejected without being attempted.
type UnsupportedError struct {
	Reason string
}

// Error implements the error interface
func (e *UnsupportedError) Error() string {
	return e.Reason
}

func newUnsupportedError(format string, args ...interface{}) *UnsupportedError {
	return &UnsupportedError{Reason: fmt.Sprintf(format, args...)}
}
