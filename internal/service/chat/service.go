package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kandedongma/foreigner-app/backend/internal/analytics"
	"github.com/kandedongma/foreigner-app/backend/internal/crypto"
	"github.com/kandedongma/foreigner-app/backend/internal/model/chat"
	"github.com/kandedongma/foreigner-app/backend/internal/storage"
)

const (
	sessionKeyPrefix = "chat_"
	sessionIndexKey  = "sessionIds"
	schedulesKey     = "deleteSchedules"

	// DefaultSessionTTL 是匿名会话的硬生存期。
	DefaultSessionTTL = 30 * time.Minute
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")
)

// Service 管理匿名加密会话的完整生命周期：创建、消息封装、
// 定时删除和不可恢复的清除。会话记录只以密文落盘。
type Service struct {
	store  storage.Store
	cipher *crypto.Cipher
	sink   analytics.Sink
	ttl    time.Duration
	now    func() time.Time

	// stateMu 串行化 sessionIds 与 deleteSchedules 两个共享键的读改写。
	stateMu sync.Mutex

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	timerMu sync.Mutex
	timers  map[string]*time.Timer
}

// NewService 创建会话服务。ttl 不大于零时取默认30分钟。
func NewService(store storage.Store, cipher *crypto.Cipher, sink analytics.Sink, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if sink == nil {
		sink = analytics.NopSink{}
	}
	return &Service{
		store:  store,
		cipher: cipher,
		sink:   sink,
		ttl:    ttl,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
		timers: make(map[string]*time.Timer),
	}
}

// StartAnonymousSession 开启一个匿名会话：持久化加密的空会话记录，
// 并安排到期自动删除。
func (s *Service) StartAnonymousSession(ctx context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:          "session_" + uuid.NewString(),
		StartTime:   s.now().UTC(),
		IsAnonymous: true,
		Messages:    []chat.Message{},
		Status:      chat.StatusActive,
	}

	lock := s.sessionLock(session.ID)
	lock.Lock()
	err := s.saveSession(ctx, session)
	lock.Unlock()
	if err != nil {
		return chat.Session{}, err
	}

	if err := s.ScheduleAutoDelete(ctx, session.ID, s.ttl); err != nil {
		return chat.Session{}, err
	}

	s.sink.Track("chat_started", map[string]any{"mode": "anonymous"})
	return session, nil
}

// SendMessage 加密并追加一条本端消息。返回的封装体中 Content 为密文。
func (s *Service) SendMessage(ctx context.Context, sessionID, plaintext string) (chat.Message, error) {
	return s.appendMessage(ctx, sessionID, plaintext, true)
}

// ReceiveMessage 加密并追加一条对端消息。明文如何送达这里由传输层负责。
func (s *Service) ReceiveMessage(ctx context.Context, sessionID, plaintext string) (chat.Message, error) {
	return s.appendMessage(ctx, sessionID, plaintext, false)
}

// appendMessage 对同一会话的写入按会话加锁，杜绝读改写丢更新。
func (s *Service) appendMessage(ctx context.Context, sessionID, plaintext string, isSelf bool) (chat.Message, error) {
	encrypted, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return chat.Message{}, fmt.Errorf("encrypt message: %w", err)
	}

	message := chat.Message{
		ID:          "msg_" + uuid.NewString(),
		Content:     encrypted,
		ContentType: chat.ContentText,
		IsSelf:      isSelf,
		Timestamp:   s.now().UTC(),
		IsRead:      false,
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return chat.Message{}, err
	}
	if session.Status != chat.StatusActive {
		return chat.Message{}, ErrSessionEnded
	}

	session.Messages = append(session.Messages, message)
	if err := s.saveSession(ctx, session); err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// GetDecryptedMessages 返回按写入顺序解密后的消息序列。
// 会话不存在时返回空序列而不是错误。
func (s *Service) GetDecryptedMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	session, err := s.loadSession(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	decrypted := make([]chat.Message, 0, len(session.Messages))
	for _, msg := range session.Messages {
		plain, err := s.cipher.Decrypt(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("decrypt message %s: %w", msg.ID, err)
		}
		msg.Content = plain
		decrypted = append(decrypted, msg)
	}
	return decrypted, nil
}

// MarkMessagesRead 将会话内全部对端消息标记为已读。
func (s *Service) MarkMessagesRead(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}

	changed := false
	for i := range session.Messages {
		if !session.Messages[i].IsSelf && !session.Messages[i].IsRead {
			session.Messages[i].IsRead = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveSession(ctx, session)
}

// EndSession 将会话置为已结束。结束后的会话拒绝新消息，记录仍按计划删除。
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != chat.StatusActive {
		return nil
	}
	session.Status = chat.StatusEnded
	return s.saveSession(ctx, session)
}

// ScheduleAutoDelete 记录删除计划并武装一次性定时器。
// 同一会话重复调用会覆盖旧计划。
func (s *Service) ScheduleAutoDelete(ctx context.Context, sessionID string, delay time.Duration) error {
	deleteTime := s.now().Add(delay).UTC()

	s.stateMu.Lock()
	schedules, err := s.loadSchedules(ctx)
	if err == nil {
		kept := schedules[:0]
		for _, sched := range schedules {
			if sched.SessionID != sessionID {
				kept = append(kept, sched)
			}
		}
		kept = append(kept, chat.DeleteSchedule{SessionID: sessionID, DeleteTime: deleteTime})
		err = s.saveSchedules(ctx, kept)
	}
	s.stateMu.Unlock()
	if err != nil {
		return err
	}

	s.armTimer(sessionID, delay)
	return nil
}

// DeleteSession 不可逆地清除会话记录、索引项和删除计划。
// 对不存在的会话是no-op。
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	s.stopTimer(sessionID)

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Remove(ctx, sessionKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("remove session record: %w", err)
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	ids, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != sessionID {
			kept = append(kept, id)
		}
	}
	if err := s.saveIndex(ctx, kept); err != nil {
		return err
	}

	return s.removeScheduleLocked(ctx, sessionID)
}

// DeleteAllChats 清除全部会话、索引和删除计划。
func (s *Service) DeleteAllChats(ctx context.Context) error {
	ids, err := func() ([]string, error) {
		s.stateMu.Lock()
		defer s.stateMu.Unlock()
		return s.loadIndex(ctx)
	}()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.DeleteSession(ctx, id); err != nil {
			log.Printf("[securechat] delete session %s failed: %v", id, err)
		}
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if err := s.store.Remove(ctx, schedulesKey); err != nil {
		return fmt.Errorf("remove schedules: %w", err)
	}
	if err := s.store.Remove(ctx, sessionIndexKey); err != nil {
		return fmt.Errorf("remove session index: %w", err)
	}

	s.sink.Track("delete_all", map[string]any{"feature": "chat"})
	return nil
}

// GetRemainingTime 返回距离计划删除的剩余时间。
// 没有计划（已删除或从未安排）时返回0。
func (s *Service) GetRemainingTime(ctx context.Context, sessionID string) (time.Duration, error) {
	s.stateMu.Lock()
	schedules, err := s.loadSchedules(ctx)
	s.stateMu.Unlock()
	if err != nil {
		return 0, err
	}

	for _, sched := range schedules {
		if sched.SessionID == sessionID {
			remaining := sched.DeleteTime.Sub(s.now())
			if remaining < 0 {
				remaining = 0
			}
			return remaining, nil
		}
	}
	return 0, nil
}

// HasActiveSession 报告索引中是否还有会话。
func (s *Service) HasActiveSession(ctx context.Context) (bool, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	ids, err := s.loadIndex(ctx)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// GetCurrentSession 返回最近索引的会话。
func (s *Service) GetCurrentSession(ctx context.Context) (chat.Session, error) {
	s.stateMu.Lock()
	ids, err := s.loadIndex(ctx)
	s.stateMu.Unlock()
	if err != nil {
		return chat.Session{}, err
	}
	if len(ids) == 0 {
		return chat.Session{}, ErrSessionNotFound
	}
	return s.loadSession(ctx, ids[len(ids)-1])
}

// GetSession 按ID取会话，返回的记录中消息仍为密文。
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	return s.loadSession(ctx, sessionID)
}

// ReconcileSchedules 在进程启动时执行：已过期的会话立即清除，
// 未到期的按剩余时间重新武装定时器。定时器本身不跨进程存活，
// 这一步保证"会话不超过生存期"的约束在重启后仍成立。
func (s *Service) ReconcileSchedules(ctx context.Context) error {
	s.stateMu.Lock()
	schedules, err := s.loadSchedules(ctx)
	s.stateMu.Unlock()
	if err != nil {
		return err
	}

	now := s.now()
	for _, sched := range schedules {
		remaining := sched.DeleteTime.Sub(now)
		if remaining <= 0 {
			if err := s.DeleteSession(ctx, sched.SessionID); err != nil {
				log.Printf("[securechat] reconcile: purge %s failed: %v", sched.SessionID, err)
			}
			continue
		}
		s.armTimer(sched.SessionID, remaining)
	}
	return nil
}

// Close 停掉所有在途定时器，用于优雅退出。不触碰持久化状态。
func (s *Service) Close() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

func (s *Service) armTimer(sessionID string, delay time.Duration) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if old, ok := s.timers[sessionID]; ok {
		old.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(delay, func() {
		if err := s.DeleteSession(context.Background(), sessionID); err != nil {
			log.Printf("[securechat] scheduled delete of %s failed: %v", sessionID, err)
		}
	})
}

func (s *Service) stopTimer(sessionID string) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if timer, ok := s.timers[sessionID]; ok {
		timer.Stop()
		delete(s.timers, sessionID)
	}
}

// loadSession 读取并解密会话记录。调用方需要持有会话锁才能安全地改写。
func (s *Service) loadSession(ctx context.Context, sessionID string) (chat.Session, error) {
	encrypted, err := s.store.Get(ctx, sessionKeyPrefix+sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("load session: %w", err)
	}

	var session chat.Session
	if err := s.cipher.DecryptObject(encrypted, &session); err != nil {
		// 密钥不匹配或记录损坏，视为会话不可用。
		log.Printf("[securechat] session %s unreadable: %v", sessionID, err)
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// saveSession 加密落盘并保证会话ID在索引中。
func (s *Service) saveSession(ctx context.Context, session chat.Session) error {
	encrypted, err := s.cipher.EncryptObject(session)
	if err != nil {
		return fmt.Errorf("encrypt session: %w", err)
	}
	if err := s.store.Set(ctx, sessionKeyPrefix+session.ID, encrypted); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	ids, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == session.ID {
			return nil
		}
	}
	return s.saveIndex(ctx, append(ids, session.ID))
}

func (s *Service) loadIndex(ctx context.Context) ([]string, error) {
	raw, err := s.store.Get(ctx, sessionIndexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session index: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("parse session index: %w", err)
	}
	return ids, nil
}

func (s *Service) saveIndex(ctx context.Context, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal session index: %w", err)
	}
	if err := s.store.Set(ctx, sessionIndexKey, string(data)); err != nil {
		return fmt.Errorf("save session index: %w", err)
	}
	return nil
}

func (s *Service) loadSchedules(ctx context.Context) ([]chat.DeleteSchedule, error) {
	raw, err := s.store.Get(ctx, schedulesKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []chat.DeleteSchedule{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}

	var schedules []chat.DeleteSchedule
	if err := json.Unmarshal([]byte(raw), &schedules); err != nil {
		return nil, fmt.Errorf("parse schedules: %w", err)
	}
	return schedules, nil
}

func (s *Service) saveSchedules(ctx context.Context, schedules []chat.DeleteSchedule) error {
	data, err := json.Marshal(schedules)
	if err != nil {
		return fmt.Errorf("marshal schedules: %w", err)
	}
	if err := s.store.Set(ctx, schedulesKey, string(data)); err != nil {
		return fmt.Errorf("save schedules: %w", err)
	}
	return nil
}

func (s *Service) removeScheduleLocked(ctx context.Context, sessionID string) error {
	schedules, err := s.loadSchedules(ctx)
	if err != nil {
		return err
	}
	kept := schedules[:0]
	for _, sched := range schedules {
		if sched.SessionID != sessionID {
			kept = append(kept, sched)
		}
	}
	return s.saveSchedules(ctx, kept)
}
