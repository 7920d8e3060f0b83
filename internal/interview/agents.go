package interview

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed agents.yaml
var defaultAgentsYAML []byte

const QuestionsPlaceholder = "{{questions}}"

type TranscriberConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	Language string `json:"language" yaml:"language"`
}

type VoiceConfig struct {
	Provider        string  `json:"provider" yaml:"provider"`
	VoiceID         string  `json:"voiceId" yaml:"voiceId"`
	Stability       float64 `json:"stability" yaml:"stability"`
	SimilarityBoost float64 `json:"similarityBoost" yaml:"similarityBoost"`
	Speed           float64 `json:"speed" yaml:"speed"`
	Style           float64 `json:"style" yaml:"style"`
	UseSpeakerBoost bool    `json:"useSpeakerBoost" yaml:"useSpeakerBoost"`
}

type AgentMessage struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

type AgentModel struct {
	Provider string         `json:"provider" yaml:"provider"`
	Model    string         `json:"model" yaml:"model"`
	Messages []AgentMessage `json:"messages" yaml:"messages"`
}

// AgentConfig 发送给语音服务的助手配置
type AgentConfig struct {
	Name         string            `json:"name" yaml:"name"`
	FirstMessage string            `json:"firstMessage" yaml:"firstMessage"`
	Transcriber  TranscriberConfig `json:"transcriber" yaml:"transcriber"`
	Voice        VoiceConfig       `json:"voice" yaml:"voice"`
	Model        AgentModel        `json:"model" yaml:"model"`
}

// AgentTemplates 各类型的助手模板，只读；Render 总是返回新副本
type AgentTemplates struct {
	profiles map[InterviewType]AgentConfig
}

var (
	defaultAgents     *AgentTemplates
	defaultAgentsOnce sync.Once
)

func DefaultAgents() *AgentTemplates {
	defaultAgentsOnce.Do(func() {
		a, err := LoadAgents(defaultAgentsYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded agent profiles: %v", err))
		}
		defaultAgents = a
	})
	return defaultAgents
}

func LoadAgents(data []byte) (*AgentTemplates, error) {
	profiles := make(map[InterviewType]AgentConfig)
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse agent profiles: %w", err)
	}
	for _, t := range []InterviewType{TypeJob, TypeSales, TypeEnglish} {
		p, ok := profiles[t]
		if !ok {
			return nil, fmt.Errorf("agent profile for %q is missing", t)
		}
		if !hasPlaceholder(p) {
			return nil, fmt.Errorf("agent profile for %q has no system message with %s", t, QuestionsPlaceholder)
		}
	}
	return &AgentTemplates{profiles: profiles}, nil
}

func hasPlaceholder(p AgentConfig) bool {
	for _, m := range p.Model.Messages {
		if m.Role == string(RoleSystem) && strings.Contains(m.Content, QuestionsPlaceholder) {
			return true
		}
	}
	return false
}

// Render 生成会话专用的助手配置，未知类型回落到 job 模板
func (a *AgentTemplates) Render(t InterviewType, questions []Question) AgentConfig {
	tpl, ok := a.profiles[t]
	if !ok {
		tpl = a.profiles[TypeJob]
	}

	out := tpl
	out.Model.Messages = make([]AgentMessage, len(tpl.Model.Messages))
	rendered := FormatQuestions(questions)
	for i, m := range tpl.Model.Messages {
		if m.Role == string(RoleSystem) {
			m.Content = strings.ReplaceAll(m.Content, QuestionsPlaceholder, rendered)
		}
		out.Model.Messages[i] = m
	}
	return out
}

// FormatQuestions 每行一个问题，以 "- " 开头
func FormatQuestions(questions []Question) string {
	lines := make([]string, len(questions))
	for i, q := range questions {
		lines[i] = "- " + q.Text
	}
	return strings.Join(lines, "\n")
}
