package crawler

import (
	"context"
	"errors"
	"fmt"
)

// Navigator is handed to a spider with every response, it is how the spider
// schedules more requests and emits items.
type Navigator interface {
	Request(req *Request)
	SaveItem(item any)
}

// Spider holds the logic for turning responses into items and new requests.
type Spider interface {
	StartingRequests() []*Request
	// HandleResponse errors are local to the branch that produced the response,
	// unless they are wrapped with Fatal.
	HandleResponse(nav Navigator, res *Response) error
}

// ItemProcessor consumes the items saved by a spider. An error drops the item,
// an error wrapped with Fatal aborts the run.
type ItemProcessor interface {
	Process(ctx context.Context, item any) error
}

type fatalError struct {
	err error
}

func (e fatalError) Error() string {
	return fmt.Sprintf("fatal: %s", e.err.Error())
}

func (e fatalError) Unwrap() error {
	return e.err
}

// Fatal marks an error as one that should stop the whole run.
func Fatal(err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return fatalError{err: err}
}

func IsFatal(err error) bool {
	var fatal fatalError
	return errors.As(err, &fatal)
}

// StatusError is returned by a Fetcher when the server answers with a 4xx/5xx.
type StatusError struct {
	Method string
	Url    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Url, e.Status)
}
