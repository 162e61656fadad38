package stress

import (
	"context"
	"sync"
)

// stage defines the interface for a stage of a run.
type stage interface {
	// Init initializes the stage.
	Init(ctx context.Context) error
	// Run runs the stage until the context is done.
	Run(ctx context.Context)
	// Close closes (forever) the stage.
	Close()
}

// pipeline runs a set of stages, each one in its own goroutine.
type pipeline struct {
	stages []stage

	wg *sync.WaitGroup
}

func newPipeline(stages ...stage) *pipeline {
	return &pipeline{
		stages: stages,

		wg: &sync.WaitGroup{},
	}
}

// init initializes all the stages in order.
func (p *pipeline) init(ctx context.Context) error {
	for _, s := range p.stages {
		if err := s.Init(ctx); err != nil {
			return err
		}
	}

	return nil
}

// run spawns a goroutine for each stage.
func (p *pipeline) run(ctx context.Context) {
	for _, s := range p.stages {
		p.wg.Go(func() {
			s.Run(ctx)
		})
	}
}

// close waits for the stages to return and then closes them in order.
// The context given to run must be done before calling it.
func (p *pipeline) close() {
	p.wg.Wait()

	for _, s := range p.stages {
		s.Close()
	}
}
