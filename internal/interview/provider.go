package interview

import "context"

// VoiceProvider 单个会话的语音通话控制端。
//
// 事件由提供方异步推送，通过 Session.HandleEvent 送入状态机；
// 这里只包含命令方向。Connect 可能耗时较长，调用时不持有会话锁。
type VoiceProvider interface {
	Connect(ctx context.Context, agent AgentConfig, variables map[string]string) error
	Disconnect(ctx context.Context) error
	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
}

type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventMessage     EventType = "message"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventError       EventType = "error"
)

const (
	MessageTypeTranscript = "transcript"
	TranscriptFinal       = "final"
	TranscriptPartial     = "partial"
)

type ProviderMessage struct {
	Type           string `json:"type"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Role           Role   `json:"role,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
}

// ProviderEvent 语音服务推送的事件
type ProviderEvent struct {
	Type    EventType        `json:"type"`
	Message *ProviderMessage `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// FeedbackGenerator 由 FeedbackNormalizer 实现
type FeedbackGenerator interface {
	Generate(ctx context.Context, t InterviewType, questions []Question, responses []UserResponse) (*FeedbackReport, error)
}

// ResultsSink 报告持久化，失败时返回错误由会话保留报告以便重试
type ResultsSink interface {
	WriteSessionResults(ctx context.Context, sessionID string, report *FeedbackReport, responses []UserResponse) error
}

const (
	NotifyState            = "STATE"
	NotifyTranscript       = "TRANSCRIPT"
	NotifyPartial          = "PARTIAL_TRANSCRIPT"
	NotifySpeaking         = "SPEAKING"
	NotifyMute             = "MUTE"
	NotifyFeedbackStarted  = "FEEDBACK_STARTED"
	NotifyReportReady      = "REPORT_READY"
	NotifyPersistenceError = "PERSISTENCE_ERROR"
	NotifyError            = "ERROR"
)

type SessionEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Notifier 向界面推送会话变化。在会话锁内调用，实现不能阻塞也不能回调会话
type Notifier interface {
	Publish(sessionID string, ev SessionEvent)
}

type NopNotifier struct{}

func (NopNotifier) Publish(string, SessionEvent) {}
