package service

import (
	"context"
	"errors"
	"mock_interview_backend/internal/config"
	"mock_interview_backend/internal/interview"
	"mock_interview_backend/internal/model"
	"mock_interview_backend/internal/util"
	"mock_interview_backend/pkg/logger"
	"mock_interview_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionRecordStore 会话记录持久化，由 repository.InterviewRepository 实现
type SessionRecordStore interface {
	Create(ctx context.Context, rec *model.InterviewSession) error
	FindByID(ctx context.Context, id string) (*model.InterviewSession, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]model.InterviewSession, error)
	MarkInProgress(ctx context.Context, id string) error
	MarkScheduled(ctx context.Context, id string) error
	FindReport(ctx context.Context, id string) (*interview.FeedbackReport, error)
	interview.ResultsSink
}

// VoiceGateway 语音命令下发与界面通知，由 VoiceHub 实现
type VoiceGateway interface {
	ForSession(sessionID string) interview.VoiceProvider
	interview.Notifier
}

type SessionArchiver interface {
	ArchiveSession(ctx context.Context, a *SessionArchive) (string, error)
}

type liveSession struct {
	session *interview.Session
	ownerID uint

	// 串行化记录状态同步，保证最后一次写入对应当前通话状态
	recordMu sync.Mutex
}

// SessionDetail 会话详情：配置、题目、记录状态与实时通话状态
type SessionDetail struct {
	ID          string                   `json:"id"`
	Config      interview.SessionConfig  `json:"config"`
	Questions   []interview.Question     `json:"questions"`
	Status      model.InterviewStatus    `json:"status"`
	Call        *interview.SessionStatus `json:"call,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
	CompletedAt *time.Time               `json:"completedAt,omitempty"`
}

// InterviewService 会话编排：把用户操作接到状态机上，并维护本实例上的实时会话
type InterviewService struct {
	Store    SessionRecordStore
	Voice    VoiceGateway
	Feedback interview.FeedbackGenerator
	Archiver SessionArchiver
	Bank     *interview.QuestionBank
	Agents   *interview.AgentTemplates
	Cfg      config.SessionConfig

	log *zap.Logger
	now func() time.Time

	mu   sync.RWMutex
	live map[string]*liveSession
}

func NewInterviewService(store SessionRecordStore, voice VoiceGateway, feedback interview.FeedbackGenerator, archiver SessionArchiver, cfg config.SessionConfig) *InterviewService {
	return &InterviewService{
		Store:    store,
		Voice:    voice,
		Feedback: feedback,
		Archiver: archiver,
		Bank:     interview.DefaultBank(),
		Agents:   interview.DefaultAgents(),
		Cfg:      cfg,
		log:      logger.For("interview"),
		now:      time.Now,
		live:     make(map[string]*liveSession),
	}
}

// StartSession 校验配置、选题、落库，并在本实例创建处于 INACTIVE 的通话会话
func (s *InterviewService) StartSession(ctx context.Context, userID uint, userName string, cfg interview.SessionConfig) (*SessionDetail, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	questions, err := s.Bank.Select(cfg)
	if err != nil {
		return nil, err
	}

	rec, err := model.NewInterviewSession(userID, cfg, questions)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Create(ctx, rec); err != nil {
		return nil, &interview.PersistenceError{Op: "create session record", Err: err}
	}

	ls := s.attach(rec.ID, userID, userName, cfg, questions)
	monitoring.SessionsStarted.WithLabelValues(string(cfg.Type)).Inc()
	s.log.Info("Interview session created",
		zap.String("sessionId", rec.ID),
		zap.Uint("userId", userID),
		zap.String("type", string(cfg.Type)),
		zap.Int("questions", len(questions)),
	)

	st := ls.session.Status()
	return &SessionDetail{
		ID:        rec.ID,
		Config:    cfg,
		Questions: questions,
		Status:    rec.Status,
		Call:      &st,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *InterviewService) attach(id string, userID uint, userName string, cfg interview.SessionConfig, questions []interview.Question) *liveSession {
	ls := &liveSession{ownerID: userID}
	ls.session = interview.NewSession(id, userName, cfg, questions, interview.SessionDeps{
		Provider:        s.Voice.ForSession(id),
		Feedback:        s.Feedback,
		Sink:            s,
		Notifier:        s.Voice,
		Agents:          s.Agents,
		Logger:          s.log,
		FeedbackTimeout: s.Cfg.FeedbackTimeout(),
		OnTransition: func(from, to interview.CallState) {
			monitoring.SessionTransitions.WithLabelValues(string(from), string(to)).Inc()
			// 在会话锁内回调，落库放到后台
			if to == interview.StateActive || (from == interview.StateActive && to == interview.StateInactive) {
				go s.syncRecordStatus(ls)
			}
		},
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live[id]; ok {
		return existing
	}
	s.live[id] = ls
	return ls
}

// syncRecordStatus 按当前通话状态写记录状态：ACTIVE 为 in_progress，INACTIVE 为 scheduled
func (s *InterviewService) syncRecordStatus(ls *liveSession) {
	ls.recordMu.Lock()
	defer ls.recordMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := ls.session.ID
	var err error
	switch ls.session.State() {
	case interview.StateActive:
		err = s.Store.MarkInProgress(ctx, id)
	case interview.StateInactive:
		err = s.Store.MarkScheduled(ctx, id)
	default:
		return
	}
	if err != nil {
		s.log.Warn("Failed to sync session record status", zap.String("sessionId", id), zap.Error(err))
	}
}

func (s *InterviewService) lookup(id string) (*liveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.live[id]
	return ls, ok
}

// liveFor 返回本实例上的会话；尚未开始的会话可由记录恢复
func (s *InterviewService) liveFor(ctx context.Context, userID uint, userName, id string) (*liveSession, error) {
	if ls, ok := s.lookup(id); ok {
		if ls.ownerID != userID {
			return nil, util.ErrPermissionDenied
		}
		return ls, nil
	}

	rec, err := s.ownedRecord(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case model.InterviewCompleted:
		return nil, interview.ErrSessionFinished
	case model.InterviewInProgress:
		return nil, util.ErrSessionNotLive
	}

	questions, err := rec.QuestionList()
	if err != nil {
		return nil, err
	}

	s.log.Info("Restoring scheduled session", zap.String("sessionId", id))
	return s.attach(id, userID, userName, rec.Config(), questions), nil
}

func (s *InterviewService) ownedRecord(ctx context.Context, userID uint, id string) (*model.InterviewSession, error) {
	rec, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return rec, nil
}

func (s *InterviewService) GetSession(ctx context.Context, userID uint, id string) (*SessionDetail, error) {
	rec, err := s.ownedRecord(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	questions, err := rec.QuestionList()
	if err != nil {
		return nil, err
	}
	detail := &SessionDetail{
		ID:          rec.ID,
		Config:      rec.Config(),
		Questions:   questions,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	}
	if ls, ok := s.lookup(id); ok {
		st := ls.session.Status()
		detail.Call = &st
	}
	return detail, nil
}

// ListSessions 当前用户的会话记录，按创建时间倒序
func (s *InterviewService) ListSessions(ctx context.Context, userID uint) ([]model.InterviewSession, error) {
	return s.Store.ListByUser(ctx, userID, s.Cfg.ListLimit)
}

func (s *InterviewService) BeginCall(ctx context.Context, userID uint, userName, id string) (*interview.SessionStatus, error) {
	ls, err := s.liveFor(ctx, userID, userName, id)
	if err != nil {
		return nil, err
	}
	if err := ls.session.Start(ctx); err != nil {
		return nil, err
	}
	st := ls.session.Status()
	return &st, nil
}

func (s *InterviewService) owned(userID uint, id string) (*liveSession, error) {
	ls, ok := s.lookup(id)
	if !ok {
		return nil, util.ErrSessionNotLive
	}
	if ls.ownerID != userID {
		return nil, util.ErrPermissionDenied
	}
	return ls, nil
}

// checkLive 区分记录不存在与会话不在本实例
func (s *InterviewService) checkLive(ctx context.Context, userID uint, id string) (*liveSession, error) {
	ls, err := s.owned(userID, id)
	if !errors.Is(err, util.ErrSessionNotLive) {
		return ls, err
	}
	if _, err := s.ownedRecord(ctx, userID, id); err != nil {
		return nil, err
	}
	return nil, util.ErrSessionNotLive
}

func (s *InterviewService) EndCall(ctx context.Context, userID uint, id string) (*interview.SessionStatus, error) {
	ls, err := s.checkLive(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := ls.session.Stop(ctx); err != nil {
		return nil, err
	}
	st := ls.session.Status()
	return &st, nil
}

func (s *InterviewService) SetMuted(ctx context.Context, userID uint, id string, muted bool) (*interview.SessionStatus, error) {
	ls, err := s.checkLive(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if muted {
		err = ls.session.Mute(ctx)
	} else {
		err = ls.session.Unmute(ctx)
	}
	if err != nil {
		return nil, err
	}
	st := ls.session.Status()
	return &st, nil
}

func (s *InterviewService) Transcript(ctx context.Context, userID uint, id string) ([]interview.TranscriptEntry, error) {
	ls, err := s.checkLive(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return ls.session.Transcript(), nil
}

// Report 优先读实时会话，会话已回收时读持久化结果；都没有时返回 ErrReportPending
func (s *InterviewService) Report(ctx context.Context, userID uint, id string) (*interview.FeedbackReport, error) {
	if ls, ok := s.lookup(id); ok {
		if ls.ownerID != userID {
			return nil, util.ErrPermissionDenied
		}
		return ls.session.Report()
	}

	if _, err := s.ownedRecord(ctx, userID, id); err != nil {
		return nil, err
	}
	report, err := s.Store.FindReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, interview.ErrReportPending
	}
	return report, nil
}

// RetryResults 重新写入已生成的报告
func (s *InterviewService) RetryResults(ctx context.Context, userID uint, id string) error {
	ls, err := s.checkLive(ctx, userID, id)
	if err != nil {
		return err
	}
	return ls.session.RetryPersist(ctx)
}

// CanAttach 校验浏览器语音连接的归属，必要时恢复尚未开始的会话
func (s *InterviewService) CanAttach(ctx context.Context, userID uint, userName, id string) error {
	_, err := s.liveFor(ctx, userID, userName, id)
	return err
}

// HandleProviderEvent 接收 VoiceHub 转发的语音事件
func (s *InterviewService) HandleProviderEvent(sessionID string, ev interview.ProviderEvent) {
	ls, ok := s.lookup(sessionID)
	if !ok {
		s.log.Debug("Provider event for unknown session", zap.String("sessionId", sessionID), zap.String("event", string(ev.Type)))
		return
	}
	ls.session.HandleEvent(ev)
}

// WriteSessionResults 实现 interview.ResultsSink：写记录后尽力归档转写与报告
func (s *InterviewService) WriteSessionResults(ctx context.Context, sessionID string, report *interview.FeedbackReport, responses []interview.UserResponse) error {
	if err := s.Store.WriteSessionResults(ctx, sessionID, report, responses); err != nil {
		monitoring.PersistenceFailures.Inc()
		return err
	}
	if s.Archiver == nil {
		return nil
	}

	ls, ok := s.lookup(sessionID)
	if !ok {
		return nil
	}
	url, err := s.Archiver.ArchiveSession(ctx, &SessionArchive{
		SessionID:  sessionID,
		UserID:     ls.ownerID,
		Config:     ls.session.Config,
		Questions:  ls.session.Questions,
		Transcript: ls.session.Transcript(),
		Responses:  responses,
		Report:     report,
		ArchivedAt: s.now(),
	})
	if err != nil {
		s.log.Warn("Session archive failed", zap.String("sessionId", sessionID), zap.Error(err))
		return nil
	}
	s.log.Info("Session archived", zap.String("sessionId", sessionID), zap.String("url", url))
	return nil
}

// EvictIdle 回收本实例上的空闲会话：结果已写入且结束超过保留期，或处于 INACTIVE 超过保留期。
// 写入失败的会话保留，等待重试
func (s *InterviewService) EvictIdle() int {
	retention := s.Cfg.Retention()
	cutoff := s.now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, ls := range s.live {
		st := ls.session.Status()
		switch st.State {
		case interview.StateFinished:
			ended := ls.session.EndedAt()
			if !st.Persisted || ended.IsZero() || ended.After(cutoff) {
				continue
			}
		case interview.StateInactive:
			if ls.session.IdleSince().After(cutoff) {
				continue
			}
		default:
			continue
		}
		delete(s.live, id)
		evicted++
	}
	if evicted > 0 {
		s.log.Info("Evicted idle sessions", zap.Int("count", evicted), zap.Int("remaining", len(s.live)))
	}
	return evicted
}

// RunEviction 按周期回收，ctx 取消后返回
func (s *InterviewService) RunEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}

// LiveCount 本实例上的实时会话数
func (s *InterviewService) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}
