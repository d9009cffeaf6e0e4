package server

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gomlx/treerun/pkg/core/batch"
	"github.com/gomlx/treerun/pkg/predictor"
	"github.com/pkg/errors"
)

// PredictRequest is the body of POST /v1/predict.
//
// Either Rows (dense) or RowPtr (sparse, CSR) must be given. In dense rows a null is a missing feature.
type PredictRequest struct {
	Rows [][]*float32 `json:"rows,omitempty"`

	NumCol uint64    `json:"num_col,omitempty"`
	RowPtr []uint64  `json:"row_ptr,omitempty"`
	ColInd []uint32  `json:"col_ind,omitempty"`
	Data   []float32 `json:"data,omitempty"`

	PredMargin bool `json:"pred_margin,omitempty"`
	NumThreads int  `json:"nthread,omitempty"`
}

// Predictions are encoded as a JSON array of numbers, where NaN and infinite values
// (which JSON can't represent) are encoded as null. Decoding maps null back to NaN.
type Predictions []float32

// MarshalJSON implements json.Marshaler.
func (p Predictions) MarshalJSON() ([]byte, error) {
	values := make([]*float32, len(p))
	for ii := range p {
		v := float64(p[ii])
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values[ii] = &p[ii]
		}
	}
	return json.Marshal(values)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Predictions) UnmarshalJSON(b []byte) error {
	var values []*float32
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	if values == nil {
		*p = nil
		return nil
	}
	*p = make(Predictions, len(values))
	for ii, v := range values {
		if v == nil {
			(*p)[ii] = float32(math.NaN())
		} else {
			(*p)[ii] = *v
		}
	}
	return nil
}

// PredictResponse is returned by POST /v1/predict.
//
// Row r's predictions are Predictions[r*Width : (r+1)*Width].
type PredictResponse struct {
	Predictions Predictions `json:"predictions"`
	NumRow      uint64    `json:"num_row"`
	Width       uint64    `json:"width"`
}

// Batch converts the request to a dense or CSR batch.
func (req *PredictRequest) Batch() (batch.Batch, error) {
	if req.Rows != nil && req.RowPtr != nil {
		return nil, errors.Wrapf(batch.ErrInvalidInput, "request has both dense \"rows\" and sparse \"row_ptr\"")
	}
	if req.RowPtr != nil {
		return batch.NewCSR(req.Data, req.ColInd, req.RowPtr, req.NumCol)
	}
	numRow := len(req.Rows)
	numCol := int(req.NumCol)
	if numRow > 0 {
		if req.NumCol != 0 && req.NumCol != uint64(len(req.Rows[0])) {
			return nil, errors.Wrapf(batch.ErrInvalidInput, "\"num_col\"=%d, but row 0 has %d features",
				req.NumCol, len(req.Rows[0]))
		}
		numCol = len(req.Rows[0])
	}
	values := make([]float32, numRow*numCol)
	for row, features := range req.Rows {
		if len(features) != numCol {
			return nil, errors.Wrapf(batch.ErrInvalidInput, "row %d has %d features, row 0 has %d", row, len(features), numCol)
		}
		for col, v := range features {
			if v == nil {
				values[row*numCol+col] = float32(math.NaN())
			} else {
				values[row*numCol+col] = *v
			}
		}
	}
	return batch.NewDense(values, uint64(numRow), uint64(numCol), float32(math.NaN()))
}

// PredictHandler serves POST /v1/predict.
func (s *Server) PredictHandler(c *gin.Context) {
	var req PredictRequest
	if !bindJSON(c, &req) {
		return
	}
	b, err := req.Batch()
	if err != nil {
		abortWithError(c, statusForError(err), err)
		return
	}
	if s.MaxRows > 0 && b.NumRow() > uint64(s.MaxRows) {
		abortWithError(c, http.StatusRequestEntityTooLarge,
			errors.Errorf("request has %d rows, at most %d are accepted", b.NumRow(), s.MaxRows))
		return
	}
	preds, err := s.p.Predict(b, predictor.Options{NumThreads: req.NumThreads, PredMargin: req.PredMargin})
	if err != nil {
		abortWithError(c, statusForError(err), err)
		return
	}
	resp := PredictResponse{Predictions: Predictions(preds), NumRow: b.NumRow()}
	if b.NumRow() > 0 {
		resp.Width = uint64(len(preds)) / b.NumRow()
	}
	c.JSON(http.StatusOK, resp)
}
