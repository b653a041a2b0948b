package usecase

import (
	"context"

	"MacroChain/internal/domain/models"
	drepo "MacroChain/internal/domain/repository"
	mid "MacroChain/internal/middleware"
	applogger "MacroChain/pkg/logger"
)

// DocumentCollector reads a document stream and feeds the processor.
type DocumentCollector struct {
	stream  drepo.DocumentStream
	proc    *DocumentProcessor
	metrics drepo.Metrics
	pipe    *mid.DocumentPipeline
	l       *applogger.Logger
	done    chan struct{}
}

func NewDocumentCollector(stream drepo.DocumentStream, proc *DocumentProcessor, metrics drepo.Metrics, pipe *mid.DocumentPipeline) *DocumentCollector {
	return &DocumentCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, l: applogger.Nop(), done: make(chan struct{})}
}

// SetLogger injects a structured logger.
func (c *DocumentCollector) SetLogger(l *applogger.Logger) { c.l = l }

// IsConnected returns true if the document stream is connected.
func (c *DocumentCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *DocumentCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	docCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, docCh, errCh)
	return nil
}

func (c *DocumentCollector) consume(ctx context.Context, docCh <-chan *models.Document, errCh <-chan error) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
				c.l.Warn("document stream error", applogger.Error(err))
			}
		case d, ok := <-docCh:
			if !ok {
				// stream ended; reconnect and resume reading
				if !c.reconnect(ctx) {
					return
				}
				docCh, errCh = c.stream.Read(ctx)
				continue
			}
			if d == nil {
				continue
			}
			var err error
			if c.pipe != nil {
				err = c.pipe.Process(ctx, d)
			} else {
				err = c.proc.Process(ctx, d)
			}
			if err != nil {
				c.l.Debug("document not processed", applogger.String("document_id", d.ID), applogger.Error(err))
			}
		}
	}
}

// reconnect retries until the stream is back or ctx ends.
func (c *DocumentCollector) reconnect(ctx context.Context) bool {
	for ctx.Err() == nil {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			return true
		}
		c.metrics.RecordError("stream_reconnect")
		c.l.Error("document stream reconnect failed", applogger.Error(err))
	}
	return false
}

// Processor returns the underlying DocumentProcessor for lifecycle management.
func (c *DocumentCollector) Processor() *DocumentProcessor { return c.proc }

// Done is closed once the consume loop exits.
func (c *DocumentCollector) Done() <-chan struct{} { return c.done }

// Shutdown stops pipeline and closes stream.
func (c *DocumentCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
