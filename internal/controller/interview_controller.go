package controller

import (
	"context"
	"errors"
	"mock_interview_backend/internal/interview"
	"mock_interview_backend/internal/model"
	"mock_interview_backend/internal/service"
	"mock_interview_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// InterviewOrchestrator 由 service.InterviewService 实现
type InterviewOrchestrator interface {
	StartSession(ctx context.Context, userID uint, userName string, cfg interview.SessionConfig) (*service.SessionDetail, error)
	ListSessions(ctx context.Context, userID uint) ([]model.InterviewSession, error)
	GetSession(ctx context.Context, userID uint, id string) (*service.SessionDetail, error)
	BeginCall(ctx context.Context, userID uint, userName, id string) (*interview.SessionStatus, error)
	EndCall(ctx context.Context, userID uint, id string) (*interview.SessionStatus, error)
	SetMuted(ctx context.Context, userID uint, id string, muted bool) (*interview.SessionStatus, error)
	Transcript(ctx context.Context, userID uint, id string) ([]interview.TranscriptEntry, error)
	Report(ctx context.Context, userID uint, id string) (*interview.FeedbackReport, error)
	RetryResults(ctx context.Context, userID uint, id string) error
	CanAttach(ctx context.Context, userID uint, userName, id string) error
}

// VoiceSocket 由 service.VoiceHub 实现
type VoiceSocket interface {
	ServeWs(w http.ResponseWriter, r *http.Request, sessionID string, userID uint)
}

type InterviewController struct {
	Interviews InterviewOrchestrator
	Voice      VoiceSocket
}

// StartInterviewRequest 创建面试请求
type StartInterviewRequest struct {
	Type           string   `json:"type" binding:"required" example:"job"`
	SubType        string   `json:"subType" example:"technical"`
	Technologies   []string `json:"technologies" example:"react,typescript"`
	ProjectDetails string   `json:"projectDetails" example:"Built an online judge"`
	Level          string   `json:"level" example:"intermediate"`
	QuestionCount  int      `json:"questionCount" binding:"required" example:"8"`
	Difficulty     string   `json:"difficulty" binding:"required" example:"medium"`
}

func (r StartInterviewRequest) sessionConfig() interview.SessionConfig {
	return interview.SessionConfig{
		Type:           interview.InterviewType(r.Type),
		SubType:        interview.SubType(r.SubType),
		Technologies:   r.Technologies,
		ProjectDetails: r.ProjectDetails,
		Level:          interview.Level(r.Level),
		QuestionCount:  r.QuestionCount,
		Difficulty:     interview.Difficulty(r.Difficulty),
	}
}

func NewInterviewController(interviews InterviewOrchestrator, voice VoiceSocket) *InterviewController {
	return &InterviewController{Interviews: interviews, Voice: voice}
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, err := util.CurrentUserID(c)
	if err != nil {
		util.Unauthorized(c)
		return 0, false
	}
	return userID, true
}

// StartInterview godoc
// @Summary 创建模拟面试
// @Description 校验配置并选题，返回会话 ID 与题目
// @Tags 面试
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body StartInterviewRequest true "面试配置"
// @Success 201 {object} util.Response{data=service.SessionDetail}
// @Failure 400 {object} util.Response "配置错误"
// @Failure 503 {object} util.Response "记录写入失败"
// @Router /api/interviews [post]
func (ctrl *InterviewController) StartInterview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req StartInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	detail, err := ctrl.Interviews.StartSession(c.Request.Context(), userID, util.CurrentUserName(c), req.sessionConfig())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, detail)
}

// ListInterviews godoc
// @Summary 面试记录列表
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.InterviewSession}
// @Router /api/interviews [get]
func (ctrl *InterviewController) ListInterviews(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := ctrl.Interviews.ListSessions(c.Request.Context(), userID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, list)
}

// GetInterview godoc
// @Summary 面试详情
// @Description 配置、题目、记录状态以及本实例上的通话状态
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionDetail}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/interviews/{id} [get]
func (ctrl *InterviewController) GetInterview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	detail, err := ctrl.Interviews.GetSession(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, detail)
}

// BeginCall godoc
// @Summary 开始通话
// @Description 向浏览器语音连接下发 connect 命令，状态进入 CONNECTING
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=interview.SessionStatus}
// @Failure 409 {object} util.Response "通话已开始或已结束"
// @Failure 502 {object} util.Response "语音服务连接失败"
// @Router /api/interviews/{id}/call [post]
func (ctrl *InterviewController) BeginCall(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := ctrl.Interviews.BeginCall(c.Request.Context(), userID, util.CurrentUserName(c), c.Param("id"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, st)
}

// EndCall godoc
// @Summary 结束通话
// @Description 结束通话并开始生成报告
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=interview.SessionStatus}
// @Failure 409 {object} util.Response "通话未开始"
// @Router /api/interviews/{id}/call [delete]
func (ctrl *InterviewController) EndCall(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := ctrl.Interviews.EndCall(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, st)
}

// Mute godoc
// @Summary 静音
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=interview.SessionStatus}
// @Router /api/interviews/{id}/mute [post]
func (ctrl *InterviewController) Mute(c *gin.Context) {
	ctrl.setMuted(c, true)
}

// Unmute godoc
// @Summary 取消静音
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=interview.SessionStatus}
// @Router /api/interviews/{id}/unmute [post]
func (ctrl *InterviewController) Unmute(c *gin.Context) {
	ctrl.setMuted(c, false)
}

func (ctrl *InterviewController) setMuted(c *gin.Context, muted bool) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := ctrl.Interviews.SetMuted(c.Request.Context(), userID, c.Param("id"), muted)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, st)
}

// GetTranscript godoc
// @Summary 通话转写
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=[]interview.TranscriptEntry}
// @Failure 409 {object} util.Response "会话不在本实例"
// @Router /api/interviews/{id}/transcript [get]
func (ctrl *InterviewController) GetTranscript(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	entries, err := ctrl.Interviews.Transcript(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	if entries == nil {
		entries = []interview.TranscriptEntry{}
	}
	util.Success(c, entries)
}

// GetReport godoc
// @Summary 面试报告
// @Description 报告生成中返回 202
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=interview.FeedbackReport}
// @Success 202 {object} util.Response "报告生成中"
// @Router /api/interviews/{id}/report [get]
func (ctrl *InterviewController) GetReport(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	report, err := ctrl.Interviews.Report(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, interview.ErrReportPending) {
		util.Accepted(c, err.Error(), nil)
		return
	}
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, report)
}

// RetryReport godoc
// @Summary 重试写入报告
// @Description 报告已生成但写库失败时重试，不会重新生成
// @Tags 面试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response "仍然写入失败"
// @Router /api/interviews/{id}/report/retry [post]
func (ctrl *InterviewController) RetryReport(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	err := ctrl.Interviews.RetryResults(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, interview.ErrReportPending) {
		util.Accepted(c, err.Error(), nil)
		return
	}
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, gin.H{"persisted": true})
}

// HandleWS godoc
// @Summary 语音桥 WebSocket
// @Description 浏览器转发语音 SDK 事件，服务端下发命令与会话通知
// @Tags 面试
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param token query string true "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Router /api/interviews/{id}/ws [get]
func (ctrl *InterviewController) HandleWS(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := ctrl.Interviews.CanAttach(c.Request.Context(), userID, util.CurrentUserName(c), id); err != nil {
		util.HandleError(c, err)
		return
	}
	ctrl.Voice.ServeWs(c.Writer, c.Request, id, userID)
}
