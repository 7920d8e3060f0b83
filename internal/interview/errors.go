package interview

import (
	"errors"
	"fmt"
)

var (
	ErrSessionFinished = errors.New("session already finished")
	ErrCallInProgress  = errors.New("call already in progress")
	ErrNotActive       = errors.New("call is not active")
	ErrReportPending   = errors.New("feedback report is still pending")

	ErrPersistInProgress = errors.New("session results are being written")
)

// ConfigurationError 会话配置非法，在选题之前拒绝
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid session config: " + e.Reason
	}
	return fmt.Sprintf("invalid session config: %s: %s", e.Field, e.Reason)
}

// ProviderConnectionError 语音服务连接或发送失败，不自动重试
type ProviderConnectionError struct {
	Op  string
	Err error
}

func (e *ProviderConnectionError) Error() string {
	return fmt.Sprintf("voice provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderConnectionError) Unwrap() error { return e.Err }

// PersistenceError 会话或报告写入失败，调用方可重试
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Retryable() bool { return true }

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsProviderConnectionError(err error) bool {
	var target *ProviderConnectionError
	return errors.As(err, &target)
}

func IsPersistenceError(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
