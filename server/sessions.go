package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/plot"

	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/report"
	"github.com/YuminosukeSato/linfit/training"
)

// createSessionRequest overrides training.DefaultConfig field by field.
type createSessionRequest struct {
	DatasetID     string   `json:"dataset_id" binding:"required"`
	UserID        string   `json:"user_id"`
	LearningRate  *float64 `json:"learning_rate"`
	MaxEpochs     *int     `json:"max_epochs"`
	Tolerance     *float64 `json:"tolerance"`
	EarlyStopping *bool    `json:"early_stopping"`
	TrainRatio    *float64 `json:"train_ratio"`
	Seed          *int64   `json:"seed"`
	Patience      *int     `json:"patience"`
	Normalize     *bool    `json:"normalize"`
	EpochDelayMs  *int64   `json:"epoch_delay_ms"`
}

func (r createSessionRequest) config() training.Config {
	cfg := training.DefaultConfig()
	if r.LearningRate != nil {
		cfg.LearningRate = *r.LearningRate
	}
	if r.MaxEpochs != nil {
		cfg.MaxEpochs = *r.MaxEpochs
	}
	if r.Tolerance != nil {
		cfg.Tolerance = *r.Tolerance
	}
	if r.EarlyStopping != nil {
		cfg.EarlyStopping = *r.EarlyStopping
	}
	if r.TrainRatio != nil {
		cfg.TrainRatio = *r.TrainRatio
	}
	if r.Patience != nil {
		cfg.Patience = *r.Patience
	}
	if r.Normalize != nil {
		cfg.Normalize = *r.Normalize
	}
	if r.EpochDelayMs != nil {
		cfg.EpochDelay = time.Duration(*r.EpochDelayMs) * time.Millisecond
	}
	cfg.Seed = r.Seed
	return cfg
}

type sessionResponse struct {
	SessionID string               `json:"session_id"`
	DatasetID string               `json:"dataset_id"`
	State     training.State       `json:"state"`
	Epoch     int                  `json:"epoch"`
	Latest    *training.EpochState `json:"latest"`
	Config    training.Config      `json:"config"`
}

func (e *sessionEntry) status() sessionResponse {
	out := sessionResponse{
		SessionID: e.Session.ID(),
		DatasetID: e.DatasetID,
		State:     e.Session.State(),
		Config:    e.Session.Config(),
	}
	if latest, ok := e.Session.Latest(); ok {
		out.Epoch = latest.Epoch
		out.Latest = &latest
	}
	return out
}

func (e *sessionEntry) pause() error  { return e.Session.Pause() }
func (e *sessionEntry) resume() error { return e.Session.Resume() }
func (e *sessionEntry) stop() error   { return e.Session.Stop() }

// finishedParams returns the final parameters, or an illegal transition
// error while the run is still going.
func (e *sessionEntry) finishedParams() (linear.Params, error) {
	res, ok := e.Session.Result()
	if !ok {
		return linear.Params{}, errors.NewIllegalStateTransitionError("read result of", e.Session.State().String())
	}
	return res.Params, nil
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ds, err := s.registry.dataset(req.DatasetID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var sess *training.Session
	h := newHub(func() training.State { return sess.State() })
	sess = training.NewSession(ds.Data,
		training.WithLogger(s.base),
		training.WithObserver(h.observe),
	)
	// Training outlives the request, so it must not inherit its context.
	if err := sess.Start(context.Background(), req.config()); err != nil {
		abortWithError(c, err)
		return
	}
	entry := &sessionEntry{Session: sess, DatasetID: ds.ID, UserID: req.UserID, hub: h}
	s.registry.addSession(entry)
	go func() {
		<-sess.Done()
		res, _ := sess.Result()
		h.finish(res)
	}()

	c.JSON(http.StatusCreated, entry.status())
}

func (s *Server) getSession(c *gin.Context) {
	e, err := s.registry.session(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, e.status())
}

func (s *Server) deleteSession(c *gin.Context) {
	e, err := s.registry.removeSession(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !e.Session.State().Terminal() {
		_ = e.Session.Stop()
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) control(action func(*sessionEntry) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := s.registry.session(c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := action(e); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, e.status())
	}
}

func (s *Server) sessionResult(c *gin.Context) {
	e, err := s.registry.session(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	res, ok := e.Session.Result()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "training has not finished", "state": e.Session.State()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// sessionChart renders cost.png or fit.png. Both work mid-run: the fit
// chart then shows the latest epoch's line.
func (s *Server) sessionChart(c *gin.Context) {
	e, err := s.registry.session(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	ds, err := s.registry.dataset(e.DatasetID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var params linear.Params
	var ref *linear.ReferenceFit
	if res, ok := e.Session.Result(); ok {
		params = res.Params
		if res.ReferenceErr == nil {
			ref = &res.Reference
		}
	} else if latest, ok := e.Session.Latest(); ok {
		params = latest.Params()
	}

	var p *plot.Plot
	switch c.Param("chart") {
	case "cost.png":
		p, err = report.CostCurve(e.Session.CostHistory())
	case "fit.png":
		p, err = report.FitPlot(ds.Data.Samples(), params, ref, ds.XColumn, ds.YColumn)
	default:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown chart " + c.Param("chart")})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WritePNG(p, &buf); err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

type saveRequest struct {
	UserID   string `json:"user_id"`
	FileName string `json:"file_name"`
}

func (s *Server) saveSession(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	e, err := s.registry.session(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	var req saveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	res, ok := e.Session.Result()
	if !ok {
		abortWithError(c, errors.NewIllegalStateTransitionError("save", e.Session.State().String()))
		return
	}
	ds, err := s.registry.dataset(e.DatasetID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = e.UserID
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = ds.FileName
	}
	rec, err := s.store.Save(c.Request.Context(), storageSaveRequest(userID, fileName, ds, res))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}
