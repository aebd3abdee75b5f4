package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
	"github.com/YuminosukeSato/linfit/storage"
	"github.com/YuminosukeSato/linfit/training"
)

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "model storage is not configured"})
		return false
	}
	return true
}

func storageSaveRequest(userID, fileName string, ds *datasetEntry, res training.Result) storage.SaveRequest {
	return storage.SaveRequest{
		UserID:   userID,
		FileName: fileName,
		XColumn:  ds.XColumn,
		YColumn:  ds.YColumn,
		Result:   res,
	}
}

type predictRequest struct {
	SessionID string    `json:"session_id"`
	ModelID   string    `json:"model_id"`
	X         *float64  `json:"x"`
	Xs        []float64 `json:"xs"`
}

type predictResponse struct {
	Equation    string    `json:"equation"`
	Prediction  *float64  `json:"prediction,omitempty"`
	Predictions []float64 `json:"predictions,omitempty"`
}

// predict evaluates a finished session's or a stored model's line at x
// or at every value of xs.
func (s *Server) predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if (req.SessionID == "") == (req.ModelID == "") {
		badRequest(c, "exactly one of session_id and model_id is required")
		return
	}
	if req.X == nil && len(req.Xs) == 0 {
		badRequest(c, "x or xs is required")
		return
	}

	var params linear.Params
	if req.SessionID != "" {
		e, err := s.registry.session(req.SessionID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if params, err = e.finishedParams(); err != nil {
			abortWithError(c, err)
			return
		}
	} else {
		if !s.requireStore(c) {
			return
		}
		rec, err := s.store.Get(c.Request.Context(), req.ModelID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		params = rec.Params()
	}

	s.logger.Debug("prediction",
		log.OperationKey, log.OperationPredict,
		log.BatchSizeKey, len(req.Xs),
		log.SessionIDKey, req.SessionID,
		log.ModelIDKey, req.ModelID,
	)
	out := predictResponse{Equation: params.Equation()}
	if req.X != nil {
		y := params.Predict(*req.X)
		out.Prediction = &y
	}
	if len(req.Xs) > 0 {
		out.Predictions = params.PredictBatch(req.Xs)
	}
	// JSON has no encoding for ±Inf
	if (out.Prediction != nil && !errors.IsFinite(*out.Prediction)) || !errors.IsFinite(out.Predictions...) {
		abortWithError(c, errors.NewValueError("predict", "prediction is outside the float64 range"))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listModels(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	recs, err := s.store.List(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if recs == nil {
		recs = []storage.ModelRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"models": recs})
}

type modelResponse struct {
	*storage.ModelRecord
	CostHistory []float64 `json:"cost_history"`
}

func (s *Server) getModel(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	history, err := s.store.CostHistory(rec)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, modelResponse{ModelRecord: rec, CostHistory: history})
}

func (s *Server) deleteModel(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
