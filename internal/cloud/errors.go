package cloud

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the backend answers 404
var ErrNotFound = errors.New("not found")

// RemoteCallError is a network failure or non-2xx response from the backend
type RemoteCallError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s returned %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s returned %d", e.Op, e.StatusCode)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// AssetUploadError is an image upload failure
type AssetUploadError struct {
	Reason string
	Err    error
}

func (e *AssetUploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image upload failed: %s: %v", e.Reason, e.Err)
	}
	return "image upload failed: " + e.Reason
}

func (e *AssetUploadError) Unwrap() error {
	return e.Err
}
