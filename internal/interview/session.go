package interview

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultFeedbackTimeout = 90 * time.Second

type SessionDeps struct {
	Provider VoiceProvider
	Feedback FeedbackGenerator
	Sink     ResultsSink
	Notifier Notifier
	Agents   *AgentTemplates
	Logger   *zap.Logger

	// FeedbackTimeout 限制单次报告生成耗时，不受会话事件取消
	FeedbackTimeout time.Duration
	OnTransition    func(from, to CallState)
	Now             func() time.Time
}

// Session 单次面试的通话状态机，持有转写记录与报告
type Session struct {
	ID        string
	UserName  string
	Config    SessionConfig
	Questions []Question

	agent           AgentConfig
	provider        VoiceProvider
	feedback        FeedbackGenerator
	sink            ResultsSink
	notifier        Notifier
	log             *zap.Logger
	feedbackTimeout time.Duration
	onTransition    func(from, to CallState)
	now             func() time.Time

	mu              sync.Mutex
	state           CallState
	transcript      []TranscriptEntry
	speaking        bool
	muted           bool
	feedbackStarted bool
	report          *FeedbackReport
	responses       []UserResponse
	persisted       bool
	persistErr      error
	lastErr         error
	endedAt         time.Time
	idleSince       time.Time
	persisting      bool
	done            chan struct{}
}

type SessionStatus struct {
	ID              string    `json:"id"`
	State           CallState `json:"state"`
	Speaking        bool      `json:"speaking"`
	Muted           bool      `json:"muted"`
	TranscriptSize  int       `json:"transcriptSize"`
	FeedbackStarted bool      `json:"feedbackStarted"`
	ReportReady     bool      `json:"reportReady"`
	Persisted       bool      `json:"persisted"`
	LastError       string    `json:"lastError,omitempty"`
}

func NewSession(id, userName string, cfg SessionConfig, questions []Question, deps SessionDeps) *Session {
	agents := deps.Agents
	if agents == nil {
		agents = DefaultAgents()
	}
	s := &Session{
		ID:              id,
		UserName:        userName,
		Config:          cfg,
		Questions:       append([]Question(nil), questions...),
		agent:           agents.Render(cfg.Type, questions),
		provider:        deps.Provider,
		feedback:        deps.Feedback,
		sink:            deps.Sink,
		notifier:        deps.Notifier,
		log:             deps.Logger,
		feedbackTimeout: deps.FeedbackTimeout,
		onTransition:    deps.OnTransition,
		now:             deps.Now,
		state:           StateInactive,
		done:            make(chan struct{}),
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.feedbackTimeout <= 0 {
		s.feedbackTimeout = DefaultFeedbackTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.idleSince = s.now()
	s.log = s.log.With(zap.String("sessionId", id))
	return s
}

func (s *Session) State() CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Agent 返回本会话渲染后的助手配置
func (s *Session) Agent() AgentConfig {
	return s.agent
}

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionStatus{
		ID:              s.ID,
		State:           s.state,
		Speaking:        s.speaking,
		Muted:           s.muted,
		TranscriptSize:  len(s.transcript),
		FeedbackStarted: s.feedbackStarted,
		ReportReady:     s.report != nil,
		Persisted:       s.persisted,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Session) Transcript() []TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TranscriptEntry(nil), s.transcript...)
}

// Report 报告生成前返回 ErrReportPending；持久化失败时报告照常返回
func (s *Session) Report() (*FeedbackReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return nil, ErrReportPending
	}
	return cloneReport(s.report), nil
}

func (s *Session) Responses() []UserResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]UserResponse(nil), s.responses...)
}

// IdleSince 最近一次进入 INACTIVE 的时间，新建会话为创建时间
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleSince
}

// Done 在报告生成并尝试写入后关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setStateLocked(to CallState) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	if to == StateInactive {
		s.idleSince = s.now()
	}
	s.notifier.Publish(s.ID, SessionEvent{Type: NotifyState, Data: map[string]interface{}{"from": from, "to": to}})
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
	s.log.Debug("Call state changed", zap.String("from", string(from)), zap.String("to", string(to)))
}

// Start INACTIVE -> CONNECTING，随后发起连接。连接期间事件照常处理
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateFinished:
		s.mu.Unlock()
		return ErrSessionFinished
	case StateConnecting, StateActive:
		s.mu.Unlock()
		return ErrCallInProgress
	}
	s.lastErr = nil
	s.setStateLocked(StateConnecting)
	agent := s.agent
	s.mu.Unlock()

	if s.provider == nil {
		return s.connectFailed(errors.New("no voice provider attached"))
	}
	err := s.provider.Connect(ctx, agent, map[string]string{"username": s.UserName})
	if err != nil {
		return s.connectFailed(err)
	}
	return nil
}

func (s *Session) connectFailed(cause error) error {
	perr := &ProviderConnectionError{Op: "connect", Err: cause}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		// 用户已在连接期间挂断或收到了其他事件，保持当前状态
		s.log.Warn("Connect failed after state moved on", zap.String("state", string(s.state)), zap.Error(cause))
		return nil
	}
	s.lastErr = perr
	s.setStateLocked(StateInactive)
	s.notifier.Publish(s.ID, SessionEvent{Type: NotifyError, Data: perr.Error()})
	s.log.Error("Voice provider connect failed", zap.Error(cause))
	return perr
}

// HandleEvent 处理语音服务推送的事件，可与用户操作任意交错
func (s *Session) HandleEvent(ev ProviderEvent) {
	s.mu.Lock()
	snapshot, startFeedback := s.applyEventLocked(ev)
	s.mu.Unlock()

	if startFeedback {
		go s.runFeedback(snapshot)
	}
}

func (s *Session) applyEventLocked(ev ProviderEvent) ([]TranscriptEntry, bool) {
	switch ev.Type {
	case EventCallStart:
		if s.state == StateConnecting {
			s.setStateLocked(StateActive)
		} else {
			s.log.Debug("Ignoring call-start", zap.String("state", string(s.state)))
		}

	case EventCallEnd:
		if s.state == StateConnecting || s.state == StateActive {
			return s.finishLocked()
		}

	case EventMessage:
		if s.state != StateActive || ev.Message == nil || ev.Message.Type != MessageTypeTranscript {
			return nil, false
		}
		if ev.Message.TranscriptType != TranscriptFinal {
			s.notifier.Publish(s.ID, SessionEvent{Type: NotifyPartial, Data: map[string]interface{}{
				"role":       ev.Message.Role,
				"transcript": ev.Message.Transcript,
			}})
			return nil, false
		}
		entry := TranscriptEntry{Role: normalizeRole(ev.Message.Role), Content: ev.Message.Transcript, Time: s.now()}
		s.transcript = append(s.transcript, entry)
		s.notifier.Publish(s.ID, SessionEvent{Type: NotifyTranscript, Data: entry})

	case EventSpeechStart, EventSpeechEnd:
		if s.state != StateActive {
			return nil, false
		}
		speaking := ev.Type == EventSpeechStart
		if s.speaking != speaking {
			s.speaking = speaking
			s.notifier.Publish(s.ID, SessionEvent{Type: NotifySpeaking, Data: speaking})
		}

	case EventError:
		msg := ev.Error
		if msg == "" {
			msg = "unknown provider error"
		}
		if s.state == StateFinished {
			s.log.Warn("Provider error after call finished", zap.String("error", msg))
			return nil, false
		}
		s.lastErr = &ProviderConnectionError{Op: "call", Err: errors.New(msg)}
		s.speaking = false
		s.setStateLocked(StateInactive)
		s.notifier.Publish(s.ID, SessionEvent{Type: NotifyError, Data: msg})
		s.log.Error("Voice provider reported error", zap.String("error", msg))

	default:
		s.log.Debug("Unknown provider event", zap.String("type", string(ev.Type)))
	}
	return nil, false
}

func normalizeRole(r Role) Role {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return r
	case "bot", "agent":
		return RoleAssistant
	}
	return RoleSystem
}

// finishLocked 进入 FINISHED 并置位一次性标记，返回冻结的转写快照
func (s *Session) finishLocked() ([]TranscriptEntry, bool) {
	s.speaking = false
	s.endedAt = s.now()
	s.setStateLocked(StateFinished)
	if s.feedbackStarted {
		return nil, false
	}
	s.feedbackStarted = true
	s.notifier.Publish(s.ID, SessionEvent{Type: NotifyFeedbackStarted})
	return append([]TranscriptEntry(nil), s.transcript...), true
}

// Stop 用户挂断。CONNECTING 时同样直接结束，不等待 call-start
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateFinished:
		s.mu.Unlock()
		return nil
	case StateInactive:
		s.mu.Unlock()
		return ErrNotActive
	}
	snapshot, startFeedback := s.finishLocked()
	s.mu.Unlock()

	if startFeedback {
		go s.runFeedback(snapshot)
	}

	if s.provider != nil {
		if err := s.provider.Disconnect(ctx); err != nil {
			s.log.Warn("Voice provider disconnect failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Session) Mute(ctx context.Context) error   { return s.setMuted(ctx, true) }
func (s *Session) Unmute(ctx context.Context) error { return s.setMuted(ctx, false) }

// setMuted 仅在 ACTIVE 时生效，其余状态静默忽略
func (s *Session) setMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	if s.state != StateActive || s.provider == nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var err error
	if muted {
		err = s.provider.Mute(ctx)
	} else {
		err = s.provider.Unmute(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		op := "unmute"
		if muted {
			op = "mute"
		}
		perr := &ProviderConnectionError{Op: op, Err: err}
		if s.state == StateActive {
			s.lastErr = perr
			s.speaking = false
			s.setStateLocked(StateInactive)
			s.notifier.Publish(s.ID, SessionEvent{Type: NotifyError, Data: perr.Error()})
		}
		return perr
	}
	if s.state == StateActive && s.muted != muted {
		s.muted = muted
		s.notifier.Publish(s.ID, SessionEvent{Type: NotifyMute, Data: muted})
	}
	return nil
}

func (s *Session) runFeedback(snapshot []TranscriptEntry) {
	defer close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), s.feedbackTimeout)
	defer cancel()

	responses := PairResponses(s.Questions, snapshot)

	var report *FeedbackReport
	if s.feedback != nil {
		r, err := s.feedback.Generate(ctx, s.Config.Type, s.Questions, responses)
		if err != nil {
			s.log.Error("Feedback generation rejected input", zap.Error(err))
		}
		report = r
	}
	if report == nil {
		report = FallbackReport(s.Config.Type)
	}

	s.mu.Lock()
	s.report = report
	s.responses = responses
	s.notifier.Publish(s.ID, SessionEvent{Type: NotifyReportReady, Data: report})
	s.mu.Unlock()

	s.log.Info("Feedback report ready",
		zap.Int("score", report.Score),
		zap.Int("responses", len(responses)),
		zap.Int("transcript", len(snapshot)),
	)

	if err := s.persist(ctx); err != nil {
		s.log.Error("Failed to persist session results", zap.Error(err))
	}
}

// RetryPersist 重新写入已生成的报告，不重新生成。已有写入进行中时返回 ErrPersistInProgress
func (s *Session) RetryPersist(ctx context.Context) error {
	return s.persist(ctx)
}

func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.report == nil:
		s.mu.Unlock()
		return ErrReportPending
	case s.persisted:
		s.mu.Unlock()
		return nil
	case s.persisting:
		s.mu.Unlock()
		return ErrPersistInProgress
	case s.sink == nil:
		s.persisted = true
		s.mu.Unlock()
		return nil
	}
	s.persisting = true
	report := cloneReport(s.report)
	responses := append([]UserResponse(nil), s.responses...)
	s.mu.Unlock()

	err := s.sink.WriteSessionResults(ctx, s.ID, report, responses)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisting = false
	if err != nil {
		perr := &PersistenceError{Op: "write results", Err: err}
		s.persistErr = perr
		s.notifier.Publish(s.ID, SessionEvent{Type: NotifyPersistenceError, Data: perr.Error()})
		return perr
	}
	s.persisted = true
	s.persistErr = nil
	return nil
}

// PersistError 最近一次写入失败的错误，成功后清空
func (s *Session) PersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistErr
}

func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}
