// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package services

import (
	"context"
	"fmt"
)

// StatementQueue matches *lrs.Queue's lifecycle. The queue runs its own
// sender goroutine, so supervision only has to close it on shutdown.
type StatementQueue interface {
	Close() error
}

// QueueService ties the LRS statement queue to the supervisor's
// lifetime: the service parks until shutdown, then closes the queue so
// undelivered statements are flushed to disk.
type QueueService struct {
	queue StatementQueue
}

// NewQueueService wraps an open statement queue.
func NewQueueService(queue StatementQueue) *QueueService {
	return &QueueService{queue: queue}
}

// Serve implements suture.Service.
func (s *QueueService) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := s.queue.Close(); err != nil {
		return fmt.Errorf("lrs queue close: %w", err)
	}
	return ctx.Err()
}

func (s *QueueService) String() string { return "lrs-queue" }
