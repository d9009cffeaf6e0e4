package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/gomlx/treerun/pkg/predictor"
	"github.com/gomlx/treerun/pkg/unit"
	"github.com/gomlx/treerun/pkg/unit/inproc"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)

	// sum adds the present features and counts each missing one as 100.
	inproc.Register("server_test/sum", inproc.Image{
		unit.QuerySymbol: func() uint64 { return 1 },
		unit.PredictSymbol: func(inst []entry.Entry, predMargin bool) float32 {
			var sum float32
			for _, e := range inst[:3] {
				if e.IsMissing() {
					sum += 100
				} else {
					sum += e.Value()
				}
			}
			if predMargin {
				return -sum
			}
			return sum
		},
	})
	inproc.Register("server_test/pair", inproc.Image{
		unit.QuerySymbol: func() uint64 { return 2 },
		unit.MulticlassSymbol: func(inst []entry.Entry, _ bool, out []float32) uint64 {
			out[0] = inst[0].Value()
			out[1] = 2 * inst[0].Value()
			return 2
		},
	})
}

func init() {
	// nonfinite returns NaN for rows with a missing first feature, +Inf for negative ones.
	inproc.Register("server_test/nonfinite", inproc.Image{
		unit.QuerySymbol: func() uint64 { return 1 },
		unit.PredictSymbol: func(inst []entry.Entry, _ bool) float32 {
			switch {
			case inst[0].IsMissing():
				return float32(math.NaN())
			case inst[0].Value() < 0:
				return float32(math.Inf(1))
			}
			return inst[0].Value()
		},
	})
}

func newTestServer(t *testing.T, name string) (*Server, http.Handler) {
	p := predictor.New(predictor.WithMaxThreads(2))
	if name != "" {
		require.NoError(t, p.Load("inproc:server_test/"+name))
	}
	t.Cleanup(p.Free)
	s := New(p)
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(must.M1(json.Marshal(body)))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	require.NoError(t, err, "response to %s %s has no valid %s", method, path, RequestIDHeader)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func ptr(v float32) *float32 { return &v }

func TestInfo(t *testing.T) {
	_, h := newTestServer(t, "pair")
	w := do(t, h, http.MethodGet, "/v1/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[InfoResponse](t, w)
	assert.True(t, info.Loaded)
	assert.Equal(t, "inproc:server_test/pair", info.Path)
	assert.Equal(t, uint64(2), info.NumOutputGroup)
	assert.Equal(t, 2, info.MaxThreads)
}

func TestPredictDense(t *testing.T) {
	_, h := newTestServer(t, "sum")
	w := do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		Rows: [][]*float32{
			{ptr(1), ptr(2), ptr(3)},
			{ptr(1), nil, ptr(3)},
			{nil, nil, nil},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[PredictResponse](t, w)
	assert.Equal(t, Predictions{6, 104, 300}, resp.Predictions)
	assert.Equal(t, uint64(3), resp.NumRow)
	assert.Equal(t, uint64(1), resp.Width)

	w = do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		Rows:       [][]*float32{{ptr(1), ptr(2), ptr(3)}},
		PredMargin: true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Predictions{-6}, decode[PredictResponse](t, w).Predictions)
}

func TestPredictSparse(t *testing.T) {
	_, h := newTestServer(t, "sum")
	w := do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		NumCol: 3,
		RowPtr: []uint64{0, 1, 3},
		ColInd: []uint32{2, 0, 1},
		Data:   []float32{5, 1, 1},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, Predictions{205, 102}, decode[PredictResponse](t, w).Predictions)
}

func TestPredictMultiOutput(t *testing.T) {
	_, h := newTestServer(t, "pair")
	w := do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		Rows: [][]*float32{{ptr(1)}, {ptr(3)}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[PredictResponse](t, w)
	assert.Equal(t, Predictions{1, 2, 3, 6}, resp.Predictions)
	assert.Equal(t, uint64(2), resp.Width)
}

func TestPredictNonFinite(t *testing.T) {
	_, h := newTestServer(t, "nonfinite")
	w := do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		Rows: [][]*float32{{ptr(1.5)}, {nil}, {ptr(-1)}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"predictions":[1.5,null,null],"num_row":3,"width":1}`, w.Body.String())

	resp := decode[PredictResponse](t, w)
	require.Len(t, resp.Predictions, 3)
	assert.Equal(t, float32(1.5), resp.Predictions[0])
	assert.True(t, math.IsNaN(float64(resp.Predictions[1])))
	assert.True(t, math.IsNaN(float64(resp.Predictions[2])))
}

func TestPredictErrors(t *testing.T) {
	_, h := newTestServer(t, "sum")

	// Ragged rows.
	w := do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		Rows: [][]*float32{{ptr(1), ptr(2), ptr(3)}, {ptr(1)}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// num_col disagrees with the dense rows.
	w = do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		Rows: [][]*float32{{ptr(1), ptr(2), ptr(3)}}, NumCol: 2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "num_col")

	// Column index out of range.
	w = do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		NumCol: 3, RowPtr: []uint64{0, 1}, ColInd: []uint32{3}, Data: []float32{1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Negative number of threads.
	w = do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		Rows: [][]*float32{{ptr(1), ptr(2), ptr(3)}}, NumThreads: -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing body.
	w = do(t, h, http.MethodPost, "/v1/predict", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "missing request body")
}

func TestPredictMaxRows(t *testing.T) {
	s, _ := newTestServer(t, "sum")
	s.MaxRows = 1
	h := s.Handler()
	w := do(t, h, http.MethodPost, "/v1/predict", PredictRequest{
		Rows: [][]*float32{{ptr(1), ptr(2), ptr(3)}, {ptr(1), ptr(2), ptr(3)}},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestLoadAndFree(t *testing.T) {
	_, h := newTestServer(t, "")

	w := do(t, h, http.MethodPost, "/v1/predict", PredictRequest{Rows: [][]*float32{{ptr(1)}}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/v1/load", LoadRequest{Path: "inproc:server_test/pair"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info := decode[InfoResponse](t, w)
	assert.True(t, info.Loaded)
	assert.Equal(t, uint64(2), info.NumOutputGroup)

	w = do(t, h, http.MethodPost, "/v1/predict", PredictRequest{Rows: [][]*float32{{ptr(2)}}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Predictions{2, 4}, decode[PredictResponse](t, w).Predictions)

	w = do(t, h, http.MethodPost, "/v1/load", LoadRequest{Path: "inproc:server_test/does_not_exist"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	// A failed load leaves the predictor unloaded.
	assert.False(t, decode[InfoResponse](t, do(t, h, http.MethodGet, "/v1/info", nil)).Loaded)

	w = do(t, h, http.MethodPost, "/v1/load", LoadRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/load", LoadRequest{Path: "inproc:server_test/sum"}).Code)
	w = do(t, h, http.MethodPost, "/v1/free", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[InfoResponse](t, w).Loaded)
}

func TestLoadDisabled(t *testing.T) {
	s, _ := newTestServer(t, "sum")
	s.AllowLoad = false
	h := s.Handler()
	w := do(t, h, http.MethodPost, "/v1/free", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDPassThrough(t *testing.T) {
	_, h := newTestServer(t, "sum")
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	req.Header.Set(RequestIDHeader, id)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))
}
