package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hjoelr/trading-signals/internal/dispatcher"
	"github.com/hjoelr/trading-signals/internal/httputil"
	"github.com/hjoelr/trading-signals/internal/logging"
	"github.com/hjoelr/trading-signals/internal/regression"
)

const maxBodyBytes = 64 * 1024 * 1024

type DataPoint struct {
	Value     decimal.Decimal `json:"value"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (d DataPoint) Point() regression.Point {
	return regression.NewPointFromTime(d.CreatedAt, d.Value)
}

func (d DataPoint) Time() time.Time {
	return d.CreatedAt
}

type request struct {
	EntityID string `json:"entity"`
	Data     []struct {
		Value     decimal.Decimal `json:"value"`
		Extra     interface{}     `json:"extra"`
		CreatedAt time.Time       `json:"createdAt"`
	} `json:"data"`
}

type responseItem struct {
	Signal    bool            `json:"signal"`
	Value     decimal.Decimal `json:"value"`
	Expected  decimal.Decimal `json:"expected"`
	Lower     decimal.Decimal `json:"lower"`
	Upper     decimal.Decimal `json:"upper"`
	Residual  decimal.Decimal `json:"residual"`
	PearsonsR decimal.Decimal `json:"pearsonsR"`
	Extra     interface{}     `json:"extra"`
	CreatedAt time.Time       `json:"createdAt"`
}

type response struct {
	EntityID string         `json:"entity"`
	Data     []responseItem `json:"data"`
}

func NewHandler(cfg *Config, predict dispatcher.Predictor) (http.Handler, error) {
	return &handler{
		cfg:     cfg,
		predict: predict,
	}, nil
}

type handler struct {
	predict dispatcher.Predictor
	cfg     *Config
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()
	logger := logging.FromContext(ctx)

	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		logger.Debug(fmt.Sprintf(`{"error": "method %v is not allowed"}`, r.Method))
		_, _ = fmt.Fprintf(w, `{"error": "method %v is not allowed"}`, r.Method)
		return
	}

	if t := r.Header.Get("content-type"); len(t) < 16 || t[:16] != "application/json" {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		logger.Debug(fmt.Sprintf(`{"error": "%v"}`, "content-type is not application/json"))
		_, _ = fmt.Fprintf(w, `{"error": "%v"}`, "content-type is not application/json")
		return
	}

	defer r.Body.Close()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	d := json.NewDecoder(r.Body)
	if err := d.Decode(&req); err != nil {
		httputil.DecodeErr(ctx, w, err)
		return
	}

	if len(req.Data) > h.cfg.MaxDataItemsLen {
		httputil.RespBadRequest(ctx, w, `{"error": "data items is too large, max allowed len is %d"}`, h.cfg.MaxDataItemsLen)
		return
	}
	var respData []responseItem
	errGrp := errgroup.Group{}
	mtx := sync.Mutex{}
	for _, dat := range req.Data {
		dat := dat
		errGrp.Go(func() error {
			point := DataPoint{
				Value:     dat.Value,
				CreatedAt: dat.CreatedAt,
			}
			result, err := h.predict.Predict(req.EntityID, point)
			if err != nil {
				return fmt.Errorf("predict error: %v", err)
			}
			mtx.Lock()
			respData = append(respData, responseItem{
				Signal:    result.Signal,
				Value:     dat.Value,
				Expected:  result.Expected,
				Lower:     result.Lower,
				Upper:     result.Upper,
				Residual:  result.Residual,
				PearsonsR: result.PearsonsR,
				Extra:     dat.Extra,
				CreatedAt: dat.CreatedAt,
			})
			mtx.Unlock()
			return nil
		})
	}
	if err := errGrp.Wait(); err != nil {
		httputil.RespInternalError(ctx, w, `{"error": "forecast processing error, %v"}`, err)
		return
	}
	resp := response{
		EntityID: req.EntityID,
	}
	resp.Data = respData
	bytes, err := json.Marshal(resp)
	if err != nil {
		httputil.RespInternalError(ctx, w, `{"error": "failed to encode output json %v"}`, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "%s", bytes)
}
