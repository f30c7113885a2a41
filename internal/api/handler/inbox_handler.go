package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/d60-Lab/blahbox/internal/model"
	"github.com/d60-Lab/blahbox/internal/service"
	"github.com/d60-Lab/blahbox/pkg/response"
)

type createBlahRequest struct {
	AuthorID string   `json:"author_id" binding:"required"`
	TypeID   string   `json:"type_id"`
	Text     string   `json:"text" binding:"required"`
	ImageIDs []string `json:"image_ids"`
}

// CreateBlah 发布内容并扇入群组收件箱
// @Summary 发布 blah（写库 + 分发）
// @Tags 收件箱
// @Accept json
// @Produce json
// @Param group_id path string true "群组ID"
// @Param request body createBlahRequest true "内容"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/groups/{group_id}/blahs [post]
func (h *Handler) CreateBlah(c *gin.Context) {
	groupID := c.Param("group_id")
	var req createBlahRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	blah := &model.Blah{
		ID:        uuid.New().String(),
		AuthorID:  req.AuthorID,
		GroupID:   groupID,
		TypeID:    req.TypeID,
		Text:      req.Text,
		ImageIDs:  req.ImageIDs,
		CreatedAt: time.Now(),
	}
	ctx := c.Request.Context()
	if err := h.blahs.Create(ctx, blah); err != nil {
		response.InternalError(c, err)
		return
	}
	if err := h.distributor.Distribute(ctx, blah, groupID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"id": blah.ID})
}

// NextInbox 轮换读取下一个收件箱
// @Summary 获取群组的下一个收件箱
// @Tags 收件箱
// @Param group_id path string true "群组ID"
// @Param inbox query int false "指定收件箱号"
// @Param last_seen query int false "上次读到的收件箱号"
// @Param limit query int false "条数上限"
// @Param safe query bool false "仅安全范围"
// @Success 200 {object} response.Response{data=service.InboxData}
// @Failure 404 {object} response.Response
// @Router /api/v1/groups/{group_id}/inbox [get]
func (h *Handler) NextInbox(c *gin.Context) {
	groupID := c.Param("group_id")
	opts := service.NextInboxOptions{
		Explicit: queryInt(c, "inbox"),
		LastSeen: queryInt(c, "last_seen"),
		SafeOnly: c.Query("safe") == "true",
	}
	if limit := queryInt(c, "limit"); limit != nil {
		opts.Limit = *limit
	}
	data, err := h.reader.GetNextInbox(c.Request.Context(), groupID, opts)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if data == nil {
		response.NotFound(c, "no inbox found")
		return
	}
	response.Success(c, data)
}

// Recents 读取群组最新内容（新→旧）
// @Summary 获取群组 recents 收件箱
// @Tags 收件箱
// @Param group_id path string true "群组ID"
// @Param limit query int false "条数上限"
// @Success 200 {object} response.Response{data=service.InboxData}
// @Router /api/v1/groups/{group_id}/recents [get]
func (h *Handler) Recents(c *gin.Context) {
	groupID := c.Param("group_id")
	limit := 0
	if v := queryInt(c, "limit"); v != nil {
		limit = *v
	}
	data, err := h.reader.GetRecentsInbox(c.Request.Context(), groupID, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, data)
}

// CachedInbox 缓存热路径读取
// @Summary 从缓存读取指定收件箱
// @Tags 收件箱
// @Param group_id path string true "群组ID"
// @Param number path int true "收件箱号"
// @Param start query int false "跳过条数"
// @Param count query int false "返回条数"
// @Param sort query string false "排序字段"
// @Param dir query string false "asc 或 desc"
// @Success 200 {object} response.Response{data=service.Inbox}
// @Failure 404 {object} response.Response
// @Router /api/v1/groups/{group_id}/inbox/{number}/cached [get]
func (h *Handler) CachedInbox(c *gin.Context) {
	groupID := c.Param("group_id")
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		response.BadRequest(c, "invalid inbox number")
		return
	}
	dir := service.SortAscending
	if c.Query("dir") == "desc" {
		dir = service.SortDescending
	}
	inbox, err := h.reader.GetInboxFromCache(
		c.Request.Context(), groupID, number,
		queryInt(c, "start"), queryInt(c, "count"),
		c.Query("sort"), dir,
	)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if inbox == nil {
		response.NotFound(c, "no such inbox in cache")
		return
	}
	// a cache read may carry a fresher high-water mark than the distributor has seen
	h.distributor.ObserveTopInbox(groupID, inbox.TopInbox)
	response.Success(c, inbox)
}

// queryInt parses an optional integer query parameter; absent or malformed
// values read as unset.
func queryInt(c *gin.Context, name string) *int {
	s, ok := c.GetQuery(name)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
