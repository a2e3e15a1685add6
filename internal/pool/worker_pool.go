package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool 固定大小的后台任务池
//
// 限制并发协程数量,任务入队后由常驻 worker 执行。
type WorkerPool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
	log     *zap.Logger
}

// NewWorkerPool 创建任务池,workers 为常驻协程数,queueSize 为待执行队列容量
func NewWorkerPool(workers, queueSize int, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan func(), queueSize),
		log:     log,
	}
}

// Start 启动全部 worker,ctx 取消后 worker 退出
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// TrySubmit 尝试入队一个任务,队列已满时立即返回 false
func (p *WorkerPool) TrySubmit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Stop 关闭队列并等待已入队的任务执行完毕
func (p *WorkerPool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

// run 执行单个任务并吞掉 panic,避免拖垮整个池
func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("后台任务 panic", zap.Any("panic", r))
		}
	}()
	task()
}
