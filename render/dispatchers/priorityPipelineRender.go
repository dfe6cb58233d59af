package dispatchers

import (
	"context"
	"errors"
	"sync"

	"github.com/maxsupermanhd/regionmap/definitions"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/maxsupermanhd/regionmap/render"
	"github.com/maxsupermanhd/regionmap/render/renderers"
	"go.uber.org/zap"
)

var ErrPipelineClosed = errors.New("render pipeline closed")

// Fetcher loads region data for a location, called from fetch workers
type Fetcher func(loc primitives.ImageLocation) (*region.Region, error)

// Sink receives finished renders, called from render workers concurrently.
// Exactly one of res and err is set.
type Sink func(loc primitives.ImageLocation, res *RegionResult, err error)

type PipelineConfig struct {
	QueueNormalLen   int
	QueuePriorityLen int
	QueueFetchedLen  int
	RenderWorkers    int
	FetchWorkers     int
	// Definitions is called once per region render and the returned set
	// is used for the whole region. Nil keeps Options.Definitions.
	Definitions func() definitions.Resolver
}

func orDefault(v, d int) int {
	if v < 1 {
		return d
	}
	return v
}

type renderTask struct {
	loc  primitives.ImageLocation
	data *region.Region
}

// PriorityPipelineRender renders region tiles in the background.
// Fetch workers read region files, priority queue is always drained
// before the normal one, render workers paint with the shader named by
// the location variant.
type PriorityPipelineRender struct {
	qnormal   chan renderTask
	qpriority chan renderTask
	qfetched  chan renderTask
	closed    chan struct{}
	wg        sync.WaitGroup
	l         *zap.Logger
	closeFn   func()
	fetch     Fetcher
	sink      Sink
	opts      Options
	defs      func() definitions.Resolver
}

func NewPriorityRenderer(cfg PipelineConfig, o Options, fetch Fetcher, sink Sink) *PriorityPipelineRender {
	closeChan := make(chan struct{})
	r := &PriorityPipelineRender{
		qnormal:   make(chan renderTask, orDefault(cfg.QueueNormalLen, 64)),
		qpriority: make(chan renderTask, orDefault(cfg.QueuePriorityLen, 128)),
		qfetched:  make(chan renderTask, orDefault(cfg.QueueFetchedLen, 32)),
		closed:    closeChan,
		l:         o.logger(),
		closeFn: sync.OnceFunc(func() {
			close(closeChan)
		}),
		fetch: fetch,
		sink:  sink,
		opts:  o,
		defs:  cfg.Definitions,
	}
	rendererThreadCount := orDefault(cfg.RenderWorkers, 4)
	r.wg.Add(rendererThreadCount)
	for i := 0; i < rendererThreadCount; i++ {
		go func() {
			r.workerRender(closeChan)
			r.wg.Done()
		}()
	}
	fetcherThreadCount := orDefault(cfg.FetchWorkers, 4)
	r.wg.Add(fetcherThreadCount)
	for i := 0; i < fetcherThreadCount; i++ {
		go func() {
			r.workerFetch(closeChan)
			r.wg.Done()
		}()
	}
	return r
}

func (r *PriorityPipelineRender) workerRender(close <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-close
		cancel()
	}()
	shaders := map[string]render.ChunkShader{}
	for {
		select {
		case <-close:
			return
		case w := <-r.qfetched:
			r.render(ctx, shaders, w)
		}
	}
}

func (r *PriorityPipelineRender) workerFetch(close <-chan struct{}) {
	for {
		select {
		case <-close:
			return
		case w := <-r.qpriority:
			if !r.fetchAndPass(close, w) {
				return
			}
			continue
		default:
		}
		select {
		case <-close:
			return
		case w := <-r.qpriority:
			if !r.fetchAndPass(close, w) {
				return
			}
		case w := <-r.qnormal:
			if !r.fetchAndPass(close, w) {
				return
			}
		}
	}
}

// fetchAndPass returns false when pipeline got closed while waiting
func (r *PriorityPipelineRender) fetchAndPass(close <-chan struct{}, w renderTask) bool {
	if w.data == nil {
		data, err := r.fetch(w.loc)
		if err != nil {
			r.l.Debug("fetch failed", zap.Stringer("loc", w.loc), zap.Error(err))
			r.sink(w.loc, nil, err)
			return true
		}
		w.data = data
	}
	select {
	case <-close:
		return false
	case r.qfetched <- w:
		return true
	}
}

func (r *PriorityPipelineRender) render(ctx context.Context, shaders map[string]render.ChunkShader, work renderTask) {
	if work.data == nil {
		r.l.Error("render without data", zap.Stringer("loc", work.loc))
		return
	}
	shader, ok := shaders[work.loc.Variant]
	if !ok {
		var err error
		shader, err = renderers.NewShader(work.loc.Variant)
		if err != nil {
			r.sink(work.loc, nil, err)
			return
		}
		shaders[work.loc.Variant] = shader
	}
	o := r.opts
	if r.defs != nil {
		o.Definitions = r.defs()
	}
	res, err := renderRegion(ctx, work.data, shader, o)
	if err != nil {
		r.sink(work.loc, nil, err)
		return
	}
	r.sink(work.loc, res, nil)
}

// stops and waits
func (r *PriorityPipelineRender) Close() {
	r.closeFn()
	r.wg.Wait()
}

func (r *PriorityPipelineRender) enqueue(q chan renderTask, t renderTask) error {
	select {
	case <-r.closed:
		return ErrPipelineClosed
	default:
	}
	select {
	case <-r.closed:
		return ErrPipelineClosed
	case q <- t:
		return nil
	}
}

func (r *PriorityPipelineRender) AddToRenderQueue(loc primitives.ImageLocation) error {
	return r.enqueue(r.qnormal, renderTask{loc: loc})
}

func (r *PriorityPipelineRender) AddToPriorityRenderQueue(loc primitives.ImageLocation) error {
	return r.enqueue(r.qpriority, renderTask{loc: loc})
}

func (r *PriorityPipelineRender) AddToRenderQueueWithData(loc primitives.ImageLocation, data *region.Region) error {
	return r.enqueue(r.qfetched, renderTask{loc: loc, data: data})
}
