// Package fallback composes two endpoints of the same resource type into
// one. Every operation is tried on the preferred endpoint first and is sent
// to the secondary endpoint only when the preferred one reports that it
// does not support the operation (resource.ErrNotSupported). Any other
// outcome of the preferred endpoint, success or failure, is returned as is.
//
// Usage:
//
//	proxy, err := fallback.New(v2Tasks, v1Tasks)
//	if err != nil {
//	    return err
//	}
//	tags, err := proxy.Tag(ctx, 31, "study_14") // v2 lacks tagging, served by v1
package fallback
