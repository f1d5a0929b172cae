package history

import (
	"backflow/internal/dao"
	"backflow/internal/model"
	"backflow/pkg/errors"
	"backflow/pkg/errors/ecode"
	"backflow/pkg/response"
	"backflow/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	history dao.HistoryDao
}

func NewHandler(history dao.HistoryDao) *Handler {
	return &Handler{
		history: history,
	}
}

// ComparisonsGet 某策略类型历次对比结论，按运行日期倒序
func (h *Handler) ComparisonsGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req model.HistoryQuery
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, validator.BindError(err)), nil)
			return
		}
		list, err := h.history.ListComparisons(ctx, req)
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, ecode.DatabaseErr, ""), nil)
			return
		}
		response.JSON(ctx, nil, list)
	}
}

// MetricsGet 某策略类型（可选版本）的历次指标
func (h *Handler) MetricsGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req model.HistoryQuery
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, validator.BindError(err)), nil)
			return
		}
		list, err := h.history.ListMetrics(ctx, req)
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, ecode.DatabaseErr, ""), nil)
			return
		}
		response.JSON(ctx, nil, list)
	}
}
