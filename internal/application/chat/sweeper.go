package chat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/log"
)

// Sweeper 定期清理长期不活跃的会话及其消息
type Sweeper struct {
	sessionRepo  chat.SessionRepository
	orchestrator *Orchestrator
	ttl          time.Duration
	interval     time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	logger *slog.Logger
}

// NewSweeper 创建会话清理器
func NewSweeper(cfg *config.Config, sessionRepo chat.SessionRepository, orchestrator *Orchestrator) *Sweeper {
	return &Sweeper{
		sessionRepo:  sessionRepo,
		orchestrator: orchestrator,
		ttl:          cfg.Chat.SessionTTL,
		interval:     cfg.Chat.SweepInterval,
		stopCh:       make(chan struct{}),
		logger:       log.NewModuleLogger("chat", "sweeper"),
	}
}

// Start 启动后台清理循环
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("Session sweeper started", "ttl", s.ttl, "interval", s.interval)
}

// Stop 停止清理循环
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce 执行一次清理
// 被清理会话的编排器互斥锁一并移除，避免锁表随时间增长。
func (s *Sweeper) SweepOnce() {
	cutoff := time.Now().Add(-s.ttl)
	removed, err := s.sessionRepo.DeleteIdleBefore(cutoff)
	if err != nil {
		s.logger.Error("Session sweep failed", "error", err)
		return
	}
	if s.orchestrator != nil {
		for _, id := range removed {
			s.orchestrator.releaseLock(id)
		}
	}
	if len(removed) > 0 {
		s.logger.Info("Idle sessions removed", "count", len(removed), "cutoff", cutoff)
	}
}
