// Package pipelines holds the consumers of the items a spider saves.
package pipelines

import (
	"context"
	"errors"
	"io"

	"grapplersguide-dl/internal/components/assert"
	"grapplersguide-dl/internal/crawler"
)

// ErrDropItem is returned by a pipeline that gives up on an item without it
// being a reason to stop the run.
var ErrDropItem = errors.New("item dropped")

// Pipeline takes an item and returns it, possibly updated, for the next
// pipeline in the chain. Items a pipeline does not know are passed through.
type Pipeline interface {
	ProcessItem(ctx context.Context, item any) (any, error)
}

// Chain runs every item through its pipelines in order, it implements
// crawler.ItemProcessor.
type Chain struct {
	pipelines []Pipeline
}

var _ crawler.ItemProcessor = Chain{}

func NewChain(pipelines ...Pipeline) Chain {
	for _, p := range pipelines {
		assert.NotNil(p)
	}
	return Chain{pipelines: pipelines}
}

func (c Chain) Process(ctx context.Context, item any) error {
	var err error
	for _, p := range c.pipelines {
		item, err = p.ProcessItem(ctx, item)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes every pipeline that holds resources.
func (c Chain) Close() error {
	var errs []error
	for _, p := range c.pipelines {
		closer, ok := p.(io.Closer)
		if !ok {
			continue
		}
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
