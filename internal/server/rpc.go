package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	bagdomain "github.com/smallbiznis/cemtrack/internal/bag/domain"
	ledgerdomain "github.com/smallbiznis/cemtrack/internal/ledger/domain"
	obslogger "github.com/smallbiznis/cemtrack/internal/observability/logger"
	usagedomain "github.com/smallbiznis/cemtrack/internal/usage/domain"
)

// maxExecBody leaves room for a base64 photo in recordUsage.
const maxExecBody = 16 << 20

const (
	ActionGetDashboardStats = "getDashboardStats"
	ActionRegisterBatch     = "registerBatch"
	ActionRecordUsage       = "recordUsage"
)

type actionHandler func(ctx context.Context, payload json.RawMessage) (any, error)

type execRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type execError struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Action string `json:"action"`
}

func (s *Server) actionTable() map[string]actionHandler {
	return map[string]actionHandler{
		ActionGetDashboardStats: s.execDashboardStats,
		ActionRegisterBatch:     s.execRegisterBatch,
		ActionRecordUsage:       s.execRecordUsage,
	}
}

// Exec dispatches {action, payload} envelopes. Bodies are read raw so clients
// that post text/plain to avoid CORS preflight are accepted.
func (s *Server) Exec(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxExecBody))
	if err != nil {
		s.writeExecError(c, "", fmt.Errorf("%w: read body: %v", ErrInvalidRequest, err))
		return
	}

	var req execRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeExecError(c, "", fmt.Errorf("%w: decode envelope: %v", ErrInvalidRequest, err))
		return
	}

	action := strings.TrimSpace(req.Action)
	c.Set(obslogger.ActionKey, action)

	handler, ok := s.actions[action]
	if !ok {
		s.httpMetrics.ObserveAction(action, "unknown", false)
		_ = c.Error(ErrUnknownAction)
		c.JSON(http.StatusBadRequest, execError{
			Error:  "Unknown action: " + action,
			Code:   ErrUnknownAction.Error(),
			Action: action,
		})
		return
	}

	payload := req.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	result, err := handler(c.Request.Context(), payload)
	if err != nil {
		s.httpMetrics.ObserveAction(action, "error", true)
		s.writeExecError(c, action, err)
		return
	}

	s.httpMetrics.ObserveAction(action, "ok", true)
	c.JSON(http.StatusOK, result)
}

func (s *Server) writeExecError(c *gin.Context, action string, err error) {
	_ = c.Error(err)
	status, payload := mapError(err)
	setRetryAfter(c, payload)
	c.JSON(status, execError{
		Error:  payload.Message,
		Code:   payload.Code,
		Action: action,
	})
}

func (s *Server) execDashboardStats(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.dashboardSvc.GetStats(ctx)
}

type registerBatchPayload struct {
	Plant string   `json:"plant"`
	Batch string   `json:"batch"`
	Count countArg `json:"count"`
}

func (s *Server) execRegisterBatch(ctx context.Context, raw json.RawMessage) (any, error) {
	var p registerBatchPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	return s.bagSvc.RegisterBatch(ctx, bagdomain.RegisterBatchRequest{
		Plant: p.Plant,
		Batch: p.Batch,
		Count: int(p.Count),
	})
}

func (s *Server) execRecordUsage(ctx context.Context, raw json.RawMessage) (any, error) {
	var req usagedomain.RecordUsageRequest
	if err := decodePayload(raw, &req); err != nil {
		return nil, err
	}
	return s.usageSvc.RecordUsage(ctx, req)
}

func decodePayload(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		if errors.Is(err, ledgerdomain.ErrInvalidCount) {
			return ledgerdomain.ErrInvalidCount
		}
		return fmt.Errorf("%w: decode payload: %v", ErrInvalidRequest, err)
	}
	return nil
}

// countArg accepts a JSON number or a numeric string. null decodes to zero,
// which later fails count validation.
type countArg int

func (n *countArg) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = 0
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return ledgerdomain.ErrInvalidCount
	}
	*n = countArg(f)
	return nil
}
