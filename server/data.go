package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
)

type processDataResponse struct {
	DatasetID string          `json:"dataset_id"`
	FileName  string          `json:"file_name"`
	Columns   []string        `json:"columns"`
	XColumn   string          `json:"x_column"`
	YColumn   string          `json:"y_column"`
	Summary   dataset.Summary `json:"summary"`
}

// processData accepts a multipart upload ("file", "x_column", "y_column",
// optional "drop_duplicates" and "remove_outliers") and keeps the cleaned
// dataset for later sessions.
func (s *Server) processData(c *gin.Context) {
	if c.Request.ContentLength > s.cfg.MaxUploadBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds " + strconv.FormatInt(s.cfg.MaxUploadBytes, 10) + " bytes"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			abortWithError(c, err)
			return
		}
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	xCol, yCol := c.PostForm("x_column"), c.PostForm("y_column")

	f, err := fh.Open()
	if err != nil {
		abortWithError(c, errors.Wrap(err, "open upload"))
		return
	}
	defer f.Close()

	table, err := dataset.ReadTable(f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if xCol == "" || yCol == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "x_column and y_column are required",
			"columns": table.Header,
		})
		return
	}
	for _, col := range []string{xCol, yCol} {
		if !table.HasColumn(col) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "column " + strconv.Quote(col) + " not present in csv header",
				"columns": table.Header,
			})
			return
		}
	}

	var opts []dataset.Option
	if formBool(c, "drop_duplicates") {
		opts = append(opts, dataset.WithDropDuplicates())
	}
	if formBool(c, "remove_outliers") {
		opts = append(opts, dataset.WithOutlierRemoval())
	}
	ds, err := dataset.FromRecords(table.Records, xCol, yCol, opts...)
	if err != nil {
		abortWithError(c, err)
		return
	}

	entry := &datasetEntry{FileName: fh.Filename, XColumn: xCol, YColumn: yCol, Columns: table.Header, Data: ds}
	id := s.registry.addDataset(entry)

	summary := ds.Summary()
	s.logger.Info("dataset processed",
		log.OperationKey, log.OperationLoad,
		"dataset_id", id,
		log.XColumnKey, xCol,
		log.YColumnKey, yCol,
		log.SamplesKey, summary.Samples,
		log.DroppedRowsKey, summary.Cleaning.RowsRemoved,
	)
	c.JSON(http.StatusCreated, processDataResponse{
		DatasetID: id,
		FileName:  fh.Filename,
		Columns:   table.Header,
		XColumn:   xCol,
		YColumn:   yCol,
		Summary:   summary,
	})
}

func formBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.PostForm(key))
	return b
}
