package pipeline

import (
	"context"
	"sync"
	"time"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
	"github.com/vnykmshr/taskflow/pkg/runtime/syncx"
)

// Item is one unit of data flowing through a pipeline.
//
// An Item with Err set is terminal: downstream stages forward it
// without applying their transforms, and Stage names the stage whose
// transform failed.
type Item struct {
	Value any
	Err   error
	Stage string
}

// Failed reports whether the item's transform chain failed.
func (it Item) Failed() bool {
	return it.Err != nil
}

// Stats holds pipeline execution statistics.
type Stats struct {
	Errors     int64
	StageStats map[string]StageStats
}

// StageStats holds statistics for an individual stage.
type StageStats struct {
	Name            string
	ItemCount       int64
	ErrorCount      int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// Config holds pipeline configuration options.
type Config struct {
	// Stages are executed in order. Must contain at least one stage.
	Stages []Stage

	// ChannelCapacity is the capacity of the channels between stages.
	// 0 means each handoff is a rendezvous. Defaults to 0.
	ChannelCapacity int

	// OnStageComplete is called after a stage transform finishes for an
	// item, before the item is sent downstream.
	OnStageComplete func(stageName string, it Item, d time.Duration)

	// OnError is called when a stage transform returns an error.
	OnError func(stageName string, err error)
}

// Pipeline chains stages into a streaming processor.
type Pipeline struct {
	config Config

	mu    sync.Mutex
	stats Stats
}

// New creates a pipeline from the given stages with default configuration.
func New(stages ...Stage) (*Pipeline, error) {
	return NewWithConfig(Config{Stages: stages})
}

// NewWithConfig creates a pipeline with the specified configuration.
func NewWithConfig(config Config) (*Pipeline, error) {
	if err := validation.ValidatePositive("pipeline", "stages", len(config.Stages)); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("pipeline", "channelCapacity", config.ChannelCapacity); err != nil {
		return nil, err
	}
	for _, s := range config.Stages {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{config: config}
	p.stats.StageStats = make(map[string]StageStats, len(config.Stages))
	for _, s := range config.Stages {
		p.stats.StageStats[s.Name] = StageStats{Name: s.Name}
	}
	return p, nil
}

// Run connects the stages to the source channel and starts their
// workers. It returns the final output channel, which closes once the
// source is closed and every item has passed through every stage.
//
// Cancelling ctx stops the stage workers; items still in flight are
// dropped, and the output channel is closed.
func (p *Pipeline) Run(ctx context.Context, source *channel.Channel[Item]) *channel.Channel[Item] {
	if ctx == nil {
		ctx = context.Background()
	}

	in := source
	for _, s := range p.config.Stages {
		out := channel.New[Item](p.config.ChannelCapacity)
		p.startStage(ctx, s, in, out)
		in = out
	}
	return in
}

// startStage launches the stage's workers between its two channels.
// The output closes once all workers have exited.
func (p *Pipeline) startStage(ctx context.Context, s Stage, in, out *channel.Channel[Item]) {
	workers := syncx.NewCompletionCounter()
	workers.Add(s.Concurrency)

	for i := 0; i < s.Concurrency; i++ {
		go func() {
			defer workers.Done()
			p.runStageWorker(ctx, s, in, out)
		}()
	}

	go func() {
		workers.Wait()
		_ = out.Close()
	}()
}

func (p *Pipeline) runStageWorker(ctx context.Context, s Stage, in, out *channel.Channel[Item]) {
	for {
		it, ok, err := in.Receive(ctx)
		if err != nil || !ok {
			return
		}

		it = p.applyStage(ctx, s, it)

		if err := out.Send(ctx, it); err != nil {
			return
		}
	}
}

// applyStage runs one item through the stage transform. Items that
// already carry an error pass through untouched.
func (p *Pipeline) applyStage(ctx context.Context, s Stage, it Item) Item {
	if it.Failed() {
		return it
	}

	start := time.Now()
	value, err := s.Transform(ctx, it.Value)
	elapsed := time.Since(start)

	if err != nil {
		it.Err = tferrors.NewOperationError("pipeline", s.Name, err)
		it.Stage = s.Name
		if p.config.OnError != nil {
			p.config.OnError(s.Name, err)
		}
	} else {
		it.Value = value
	}

	p.recordStage(s.Name, it, elapsed)
	if p.config.OnStageComplete != nil {
		p.config.OnStageComplete(s.Name, it, elapsed)
	}
	return it
}

func (p *Pipeline) recordStage(name string, it Item, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.stats.StageStats[name]
	st.Name = name
	st.ItemCount++
	st.TotalDuration += d
	st.AverageDuration = st.TotalDuration / time.Duration(st.ItemCount)
	if it.Failed() {
		st.ErrorCount++
		p.stats.Errors++
	}
	p.stats.StageStats[name] = st
}

// Stats returns a snapshot of pipeline execution statistics.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := p.stats
	snapshot.StageStats = make(map[string]StageStats, len(p.stats.StageStats))
	for k, v := range p.stats.StageStats {
		snapshot.StageStats[k] = v
	}
	return snapshot
}

// Source builds a closed input channel preloaded with the given values,
// ready to feed into Run.
func Source(ctx context.Context, values ...any) (*channel.Channel[Item], error) {
	ch := channel.New[Item](len(values))
	for _, v := range values {
		if err := ch.Send(ctx, Item{Value: v}); err != nil {
			return nil, err
		}
	}
	if err := ch.Close(); err != nil {
		return nil, err
	}
	return ch, nil
}

// Collect receives every item from out until it closes and returns
// them in arrival order.
func Collect(ctx context.Context, out *channel.Channel[Item]) ([]Item, error) {
	return out.Drain(ctx)
}
