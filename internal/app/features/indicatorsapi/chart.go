package indicatorsapi

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	recordstore "github.com/dalemusser/stratatrack/internal/app/store/records"
	"github.com/dalemusser/stratatrack/internal/app/system/chartrender"
	"github.com/dalemusser/stratatrack/internal/app/system/inputval"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/metrics"
	"github.com/dalemusser/stratatrack/internal/app/system/numfmt"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/stratatrack/internal/domain/series"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ChartResponse is the chart-ready series of an indicator.
type ChartResponse struct {
	IndicatorID string              `json:"indicatorId"`
	Name        string              `json:"name"`
	Unit        string              `json:"unit"`
	Period      series.Window       `json:"period"`
	Series      []series.Sample     `json:"series"`
	Summary     *series.Summary     `json:"summary"`
	SummaryText *numfmt.SummaryText `json:"summaryText"`
}

// chartQuery holds the parsed chart query parameters.
type chartQuery struct {
	window          series.Window
	anchor          bool
	keepLeadingGaps bool
}

// parseBool reads an optional boolean query parameter.
func parseBool(r *http.Request, key string) (bool, error) {
	v := query.Get(r, key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(key + " must be true or false")
	}
	return b, nil
}

// parseInt reads an optional non-negative integer query parameter.
func parseInt(r *http.Request, key string) (int, error) {
	v := query.Get(r, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative number")
	}
	return n, nil
}

// parseChartQuery reads period, anchor and keepLeadingGaps. A missing
// period falls back to the user's stored preference for the indicator.
func (h *Handler) parseChartQuery(r *http.Request, ind *models.Indicator, owner primitive.ObjectID) (chartQuery, error) {
	var q chartQuery
	var err error

	if q.anchor, err = parseBool(r, "anchor"); err != nil {
		return q, err
	}
	if q.keepLeadingGaps, err = parseBool(r, "keepLeadingGaps"); err != nil {
		return q, err
	}

	if p := query.Get(r, "period"); p != "" {
		if q.window, err = series.ParseWindow(p); err != nil {
			return q, errors.New("unknown period " + strconv.Quote(p))
		}
		return q, nil
	}
	q.window, err = series.LoadWindow(r.Context(), h.prefs.ForUser(owner), ind.ID.Hex())
	if err != nil {
		// A failed preference read only loses the remembered period.
		h.logger.Warn("failed to load period preference", zap.String("indicator_id", ind.ID.Hex()), zap.Error(err))
	}
	return q, nil
}

// normalized loads the indicator's records and builds the displayed series.
func (h *Handler) normalized(r *http.Request, ind *models.Indicator, q chartQuery) ([]series.Sample, error) {
	recs, err := h.records.ListAscending(r.Context(), ind.ID)
	if err != nil {
		return nil, err
	}
	return series.Normalize(recordstore.Samples(recs), q.window, series.Options{
		AnchorToToday:   q.anchor,
		TrimLeadingGaps: !q.keepLeadingGaps,
		Today:           series.Day(h.now().UTC()),
	}), nil
}

// chart handles GET /{id}/chart.
func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	ind, owner, ok := h.owned(w, r)
	if !ok {
		return
	}
	q, err := h.parseChartQuery(r, ind, owner)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	s, err := h.normalized(r, ind, q)
	if err != nil {
		h.errLog.Internal(w, r, "failed to load chart records", err)
		return
	}

	resp := ChartResponse{
		IndicatorID: ind.ID.Hex(),
		Name:        ind.Name,
		Unit:        ind.Unit,
		Period:      q.window,
		Series:      s,
	}
	if sum, ok := series.Summarize(s); ok {
		text := numfmt.Summary(numfmt.Negotiate(r.Header.Get("Accept-Language")), sum)
		resp.Summary = &sum
		resp.SummaryText = &text
	}
	metrics.ChartsServed.WithLabelValues(q.window.String(), "json").Inc()
	jsonutil.OK(w, resp)
}

// chartPNG handles GET /{id}/chart.png. An indicator without values
// answers 204.
func (h *Handler) chartPNG(w http.ResponseWriter, r *http.Request) {
	ind, owner, ok := h.owned(w, r)
	if !ok {
		return
	}
	q, err := h.parseChartQuery(r, ind, owner)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	width, err := parseInt(r, "width")
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	height, err := parseInt(r, "height")
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	s, err := h.normalized(r, ind, q)
	if err != nil {
		h.errLog.Internal(w, r, "failed to load chart records", err)
		return
	}

	var buf bytes.Buffer
	err = chartrender.PNG(&buf, s, chartrender.Options{
		Title:  ind.Name,
		Unit:   ind.Unit,
		Width:  width,
		Height: height,
	})
	if errors.Is(err, chartrender.ErrNoData) {
		jsonutil.NoContent(w)
		return
	}
	if err != nil {
		h.errLog.Internal(w, r, "failed to render chart", err)
		return
	}

	metrics.ChartsServed.WithLabelValues(q.window.String(), "png").Inc()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

type periodInput struct {
	Period string `json:"period" validate:"required,period" label:"Period"`
}

// PeriodResponse echoes the stored period.
type PeriodResponse struct {
	Period series.Window `json:"period"`
}

// savePeriod handles PUT /{id}/period.
func (h *Handler) savePeriod(w http.ResponseWriter, r *http.Request) {
	ind, owner, ok := h.owned(w, r)
	if !ok {
		return
	}
	var in periodInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res.Fields())
		return
	}
	win, _ := series.ParseWindow(in.Period)
	if err := series.SaveWindow(r.Context(), h.prefs.ForUser(owner), ind.ID.Hex(), win); err != nil {
		h.errLog.Internal(w, r, "failed to save period preference", err)
		return
	}
	jsonutil.OK(w, PeriodResponse{Period: win})
}
