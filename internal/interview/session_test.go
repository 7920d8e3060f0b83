package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProvider struct {
	connectErr  error
	connectGate chan struct{}
	muteErr     error

	connects    int32
	disconnects int32
	mutes       int32
	unmutes     int32

	mu    sync.Mutex
	agent AgentConfig
	vars  map[string]string
}

func (p *fakeProvider) Connect(ctx context.Context, agent AgentConfig, vars map[string]string) error {
	atomic.AddInt32(&p.connects, 1)
	p.mu.Lock()
	p.agent = agent
	p.vars = vars
	p.mu.Unlock()
	if p.connectGate != nil {
		select {
		case <-p.connectGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.connectErr
}

func (p *fakeProvider) Disconnect(context.Context) error {
	atomic.AddInt32(&p.disconnects, 1)
	return nil
}

func (p *fakeProvider) Mute(context.Context) error {
	atomic.AddInt32(&p.mutes, 1)
	return p.muteErr
}

func (p *fakeProvider) Unmute(context.Context) error {
	atomic.AddInt32(&p.unmutes, 1)
	return nil
}

type countingFeedback struct {
	calls     int32
	mu        sync.Mutex
	responses []UserResponse
}

func (f *countingFeedback) Generate(_ context.Context, t InterviewType, _ []Question, rs []UserResponse) (*FeedbackReport, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.responses = rs
	f.mu.Unlock()
	return FallbackReport(t), nil
}

type fakeSink struct {
	mu     sync.Mutex
	fail   bool
	writes int
	last   *FeedbackReport
}

func (s *fakeSink) WriteSessionResults(_ context.Context, _ string, r *FeedbackReport, _ []UserResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.fail {
		return errors.New("db down")
	}
	s.last = r
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (n *recordingNotifier) Publish(_ string, ev SessionEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) count(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

var testQuestions = []Question{
	{ID: "q1", Text: "Tell me about yourself."},
	{ID: "q2", Text: "Why this role?"},
	{ID: "q3", Text: "Any questions?"},
}

func newTestSession(p VoiceProvider, fb FeedbackGenerator, sink ResultsSink, n Notifier) *Session {
	cfg := SessionConfig{Type: TypeJob, SubType: SubTypeMixed, QuestionCount: 3, Difficulty: DifficultyMedium}
	return NewSession("s-1", "Ada", cfg, testQuestions, SessionDeps{
		Provider: p,
		Feedback: fb,
		Sink:     sink,
		Notifier: n,
	})
}

func finalMsg(role Role, text string) ProviderEvent {
	return ProviderEvent{Type: EventMessage, Message: &ProviderMessage{
		Type: MessageTypeTranscript, TranscriptType: TranscriptFinal, Role: role, Transcript: text,
	}}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("feedback did not finish")
	}
}

func waitState(t *testing.T, s *Session, want CallState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state=%s want %s", s.State(), want)
}

func TestSession_HappyPathGeneratesFeedbackOnce(t *testing.T) {
	p := &fakeProvider{}
	fb := &countingFeedback{}
	sink := &fakeSink{}
	n := &recordingNotifier{}
	s := newTestSession(p, fb, sink, n)

	if s.State() != StateInactive {
		t.Fatalf("initial state=%s", s.State())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if s.State() != StateConnecting {
		t.Fatalf("state=%s", s.State())
	}
	if p.vars["username"] != "Ada" {
		t.Fatalf("vars=%v", p.vars)
	}

	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	if s.State() != StateActive {
		t.Fatalf("state=%s", s.State())
	}

	s.HandleEvent(finalMsg(RoleAssistant, "Tell me about yourself."))
	s.HandleEvent(ProviderEvent{Type: EventMessage, Message: &ProviderMessage{
		Type: MessageTypeTranscript, TranscriptType: TranscriptPartial, Role: RoleUser, Transcript: "I am",
	}})
	s.HandleEvent(finalMsg(RoleUser, "I am a backend engineer."))
	s.HandleEvent(finalMsg(RoleAssistant, "Why this role?"))

	tr := s.Transcript()
	if len(tr) != 3 {
		t.Fatalf("transcript=%d", len(tr))
	}
	if tr[0].Role != RoleAssistant || tr[1].Content != "I am a backend engineer." || tr[2].Content != "Why this role?" {
		t.Fatalf("order=%+v", tr)
	}

	s.HandleEvent(ProviderEvent{Type: EventCallEnd})
	if s.State() != StateFinished {
		t.Fatalf("state=%s", s.State())
	}

	// 重复观察 FINISHED 不会再次触发
	for i := 0; i < 5; i++ {
		s.HandleEvent(ProviderEvent{Type: EventCallEnd})
		_ = s.Stop(context.Background())
		_ = s.State()
		_ = s.Transcript()
	}
	waitDone(t, s)

	if got := atomic.LoadInt32(&fb.calls); got != 1 {
		t.Fatalf("feedback calls=%d", got)
	}
	if n.count(NotifyFeedbackStarted) != 1 || n.count(NotifyReportReady) != 1 {
		t.Fatalf("notifications started=%d ready=%d", n.count(NotifyFeedbackStarted), n.count(NotifyReportReady))
	}
	if len(fb.responses) != 1 || fb.responses[0].QuestionID != "q1" {
		t.Fatalf("responses=%+v", fb.responses)
	}
	if sink.writes != 1 || sink.last == nil {
		t.Fatalf("sink writes=%d", sink.writes)
	}
	r, err := s.Report()
	if err != nil || r.Score != 75 {
		t.Fatalf("report=%+v err=%v", r, err)
	}
	if !s.Status().Persisted {
		t.Fatalf("status=%+v", s.Status())
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("restart err=%v", err)
	}
}

func TestSession_DisconnectWhileConnecting(t *testing.T) {
	p := &fakeProvider{connectGate: make(chan struct{})}
	fb := &countingFeedback{}
	s := newTestSession(p, fb, &fakeSink{}, nil)

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(context.Background()) }()
	waitState(t, s, StateConnecting)

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if s.State() != StateFinished {
		t.Fatalf("state=%s", s.State())
	}
	waitDone(t, s)
	if atomic.LoadInt32(&fb.calls) != 1 || len(fb.responses) != 0 {
		t.Fatalf("calls=%d responses=%d", fb.calls, len(fb.responses))
	}
	if atomic.LoadInt32(&p.disconnects) != 1 {
		t.Fatalf("disconnects=%d", p.disconnects)
	}

	// 迟到的 call-start 不会让会话回到 ACTIVE
	close(p.connectGate)
	if err := <-startErr; err != nil {
		t.Fatalf("Start error: %v", err)
	}
	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	s.HandleEvent(finalMsg(RoleUser, "late"))
	if s.State() != StateFinished || len(s.Transcript()) != 0 {
		t.Fatalf("state=%s transcript=%d", s.State(), len(s.Transcript()))
	}
}

func TestSession_EventsFlowWhileConnectIsPending(t *testing.T) {
	p := &fakeProvider{connectGate: make(chan struct{})}
	s := newTestSession(p, &countingFeedback{}, nil, nil)

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(context.Background()) }()
	waitState(t, s, StateConnecting)

	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	s.HandleEvent(finalMsg(RoleAssistant, "Hello!"))
	if s.State() != StateActive || len(s.Transcript()) != 1 {
		t.Fatalf("state=%s transcript=%d", s.State(), len(s.Transcript()))
	}

	close(p.connectGate)
	if err := <-startErr; err != nil {
		t.Fatalf("Start error: %v", err)
	}
}

func TestSession_ConnectFailureReturnsToInactive(t *testing.T) {
	p := &fakeProvider{connectErr: errors.New("dial timeout")}
	n := &recordingNotifier{}
	s := newTestSession(p, &countingFeedback{}, nil, n)

	err := s.Start(context.Background())
	if !IsProviderConnectionError(err) {
		t.Fatalf("err=%v", err)
	}
	if s.State() != StateInactive {
		t.Fatalf("state=%s", s.State())
	}
	if s.Status().LastError == "" || n.count(NotifyError) != 1 {
		t.Fatalf("error not surfaced: %+v", s.Status())
	}

	// 重试是一次新的用户操作
	p.connectErr = nil
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if s.State() != StateConnecting || atomic.LoadInt32(&p.connects) != 2 {
		t.Fatalf("state=%s connects=%d", s.State(), p.connects)
	}
}

func TestSession_ErrorEvent(t *testing.T) {
	fb := &countingFeedback{}
	s := newTestSession(&fakeProvider{}, fb, nil, nil)
	_ = s.Start(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	s.HandleEvent(ProviderEvent{Type: EventSpeechStart})
	s.HandleEvent(ProviderEvent{Type: EventError, Error: "ws closed"})

	if s.State() != StateInactive {
		t.Fatalf("state=%s", s.State())
	}
	st := s.Status()
	if st.Speaking || st.LastError == "" {
		t.Fatalf("status=%+v", st)
	}
	if atomic.LoadInt32(&fb.calls) != 0 {
		t.Fatalf("error must not trigger feedback")
	}
	if err := s.Stop(context.Background()); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Stop from INACTIVE err=%v", err)
	}
}

func TestSession_ErrorAfterDisconnectIsIgnored(t *testing.T) {
	fb := &countingFeedback{}
	s := newTestSession(&fakeProvider{}, fb, nil, nil)
	_ = s.Start(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	_ = s.Stop(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventError, Error: "socket closed"})

	if s.State() != StateFinished {
		t.Fatalf("state=%s", s.State())
	}
	waitDone(t, s)
	if atomic.LoadInt32(&fb.calls) != 1 {
		t.Fatalf("calls=%d", fb.calls)
	}
}

func TestSession_MuteOnlyWhileActive(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSession(p, &countingFeedback{}, nil, nil)

	if err := s.Mute(context.Background()); err != nil {
		t.Fatalf("Mute error: %v", err)
	}
	_ = s.Start(context.Background())
	_ = s.Mute(context.Background())
	if atomic.LoadInt32(&p.mutes) != 0 {
		t.Fatalf("mute must be a no-op before ACTIVE")
	}

	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	if err := s.Mute(context.Background()); err != nil {
		t.Fatalf("Mute error: %v", err)
	}
	if !s.Status().Muted || atomic.LoadInt32(&p.mutes) != 1 {
		t.Fatalf("status=%+v mutes=%d", s.Status(), p.mutes)
	}
	if err := s.Unmute(context.Background()); err != nil {
		t.Fatalf("Unmute error: %v", err)
	}
	if s.Status().Muted || atomic.LoadInt32(&p.unmutes) != 1 {
		t.Fatalf("status=%+v", s.Status())
	}

	_ = s.Stop(context.Background())
	_ = s.Unmute(context.Background())
	if atomic.LoadInt32(&p.unmutes) != 1 {
		t.Fatalf("unmute must be a no-op after FINISHED")
	}
}

func TestSession_MuteFailureSurfacesProviderError(t *testing.T) {
	p := &fakeProvider{muteErr: errors.New("broken pipe")}
	s := newTestSession(p, &countingFeedback{}, nil, nil)
	_ = s.Start(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventCallStart})

	if err := s.Mute(context.Background()); !IsProviderConnectionError(err) {
		t.Fatalf("err=%v", err)
	}
	if s.State() != StateInactive {
		t.Fatalf("state=%s", s.State())
	}
}

func TestSession_SpeakingIndicatorAndIgnoredMessages(t *testing.T) {
	n := &recordingNotifier{}
	s := newTestSession(&fakeProvider{}, &countingFeedback{}, nil, n)
	_ = s.Start(context.Background())

	s.HandleEvent(finalMsg(RoleUser, "too early"))
	s.HandleEvent(ProviderEvent{Type: EventSpeechStart})
	if len(s.Transcript()) != 0 || s.Status().Speaking {
		t.Fatalf("events before ACTIVE must be ignored")
	}

	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	s.HandleEvent(ProviderEvent{Type: EventSpeechStart})
	if !s.Status().Speaking {
		t.Fatalf("speaking not set")
	}
	s.HandleEvent(ProviderEvent{Type: EventSpeechEnd})
	if s.Status().Speaking {
		t.Fatalf("speaking not cleared")
	}
	s.HandleEvent(ProviderEvent{Type: EventMessage, Message: &ProviderMessage{Type: "function-call"}})
	if len(s.Transcript()) != 0 {
		t.Fatalf("non-transcript message appended")
	}
	if n.count(NotifySpeaking) != 2 {
		t.Fatalf("speaking notifications=%d", n.count(NotifySpeaking))
	}
}

func TestSession_PersistenceFailureKeepsReportForRetry(t *testing.T) {
	fb := &countingFeedback{}
	sink := &fakeSink{fail: true}
	s := newTestSession(&fakeProvider{}, fb, sink, nil)
	_ = s.Start(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	s.HandleEvent(finalMsg(RoleUser, "answer"))
	s.HandleEvent(ProviderEvent{Type: EventCallEnd})
	waitDone(t, s)

	if !IsPersistenceError(s.PersistError()) {
		t.Fatalf("persist err=%v", s.PersistError())
	}
	if _, err := s.Report(); err != nil {
		t.Fatalf("report must stay available: %v", err)
	}

	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()
	if err := s.RetryPersist(context.Background()); err != nil {
		t.Fatalf("RetryPersist error: %v", err)
	}
	if s.PersistError() != nil || !s.Status().Persisted {
		t.Fatalf("status=%+v", s.Status())
	}
	if atomic.LoadInt32(&fb.calls) != 1 || sink.writes != 2 {
		t.Fatalf("calls=%d writes=%d", fb.calls, sink.writes)
	}
}

func TestSession_RetryBeforeReportIsPending(t *testing.T) {
	s := newTestSession(&fakeProvider{}, &countingFeedback{}, &fakeSink{}, nil)
	if err := s.RetryPersist(context.Background()); !errors.Is(err, ErrReportPending) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.Report(); !errors.Is(err, ErrReportPending) {
		t.Fatalf("err=%v", err)
	}
}

type gatedSink struct {
	entered chan struct{}
	release chan struct{}
	writes  int32
}

func (g *gatedSink) WriteSessionResults(context.Context, string, *FeedbackReport, []UserResponse) error {
	if atomic.AddInt32(&g.writes, 1) == 1 {
		close(g.entered)
		<-g.release
	}
	return nil
}

func TestSession_RetryWhileWriteInFlight(t *testing.T) {
	sink := &gatedSink{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestSession(&fakeProvider{}, &countingFeedback{}, sink, nil)
	_ = s.Start(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	s.HandleEvent(ProviderEvent{Type: EventCallEnd})

	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("results were not written")
	}
	if err := s.RetryPersist(context.Background()); !errors.Is(err, ErrPersistInProgress) {
		t.Fatalf("retry during write err=%v", err)
	}
	close(sink.release)
	waitDone(t, s)

	if err := s.RetryPersist(context.Background()); err != nil {
		t.Fatalf("retry after write err=%v", err)
	}
	if n := atomic.LoadInt32(&sink.writes); n != 1 {
		t.Fatalf("writes=%d", n)
	}
}

func TestSession_ReportReturnsCopy(t *testing.T) {
	s := newTestSession(&fakeProvider{}, &countingFeedback{}, nil, nil)
	_ = s.Start(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	s.HandleEvent(ProviderEvent{Type: EventCallEnd})
	waitDone(t, s)

	r, _ := s.Report()
	want := r.Tips[0]
	r.Tips[0] = "changed"
	r.Feedback.Strengths[0] = "changed"
	for k := range r.Metrics {
		r.Metrics[k] = -1
	}

	again, _ := s.Report()
	if again.Tips[0] != want || again.Feedback.Strengths[0] == "changed" {
		t.Fatalf("report lists shared with caller: %+v", again)
	}
	for k, v := range again.Metrics {
		if v == -1 {
			t.Fatalf("metric %s shared with caller", k)
		}
	}
}

func TestSession_IdleSinceResetsOnError(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cfg := SessionConfig{Type: TypeJob, QuestionCount: 3, Difficulty: DifficultyMedium}
	s := NewSession("s-2", "Ada", cfg, testQuestions, SessionDeps{
		Provider: &fakeProvider{},
		Now:      func() time.Time { return now },
	})
	created := s.IdleSince()

	now = now.Add(time.Hour)
	_ = s.Start(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventCallStart})
	if !s.IdleSince().Equal(created) {
		t.Fatalf("idleSince moved while active")
	}
	s.HandleEvent(ProviderEvent{Type: EventError, Error: "dropped"})
	if s.State() != StateInactive || !s.IdleSince().Equal(now) {
		t.Fatalf("state=%s idleSince=%v", s.State(), s.IdleSince())
	}
}

func TestSession_ConcurrentEventsAndStop(t *testing.T) {
	fb := &countingFeedback{}
	s := newTestSession(&fakeProvider{}, fb, nil, nil)
	_ = s.Start(context.Background())
	s.HandleEvent(ProviderEvent{Type: EventCallStart})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.HandleEvent(finalMsg(RoleUser, "x"))
				if j == 25 {
					s.HandleEvent(ProviderEvent{Type: EventCallEnd})
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Stop(context.Background())
	}()
	wg.Wait()
	waitDone(t, s)

	if atomic.LoadInt32(&fb.calls) != 1 {
		t.Fatalf("feedback calls=%d", fb.calls)
	}
	// 报告使用的快照与冻结后的转写一致
	if len(fb.responses) != len(s.Transcript()) {
		t.Fatalf("responses=%d transcript=%d", len(fb.responses), len(s.Transcript()))
	}
}

func TestSession_AgentUsesSessionQuestions(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSession(p, nil, nil, nil)
	_ = s.Start(context.Background())

	p.mu.Lock()
	defer p.mu.Unlock()
	found := false
	for _, m := range p.agent.Model.Messages {
		if m.Role == "system" && strings.Contains(m.Content, "- Tell me about yourself.\n- Why this role?\n- Any questions?") {
			found = true
		}
	}
	if !found {
		t.Fatalf("agent prompt does not contain session questions")
	}
}
