package indicatorsapi

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	recordstore "github.com/dalemusser/stratatrack/internal/app/store/records"
	"github.com/dalemusser/stratatrack/internal/app/system/inputval"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/metrics"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/stratatrack/internal/domain/series"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxImportBytes caps the size of an uploaded CSV file.
const maxImportBytes = 1 << 20

type recordInput struct {
	Date  string   `json:"date" validate:"required,isodate" label:"Date"`
	Value *float64 `json:"value"`
}

// checkValue reports why v cannot be stored, or "" when it can.
func checkValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "Value must be a finite number."
	}
	if math.Abs(v) > models.MaxRecordMagnitude {
		return "Value is out of range."
	}
	return ""
}

// checkDate reports why the calendar day d cannot be stored, or "".
func (h *Handler) checkDate(d time.Time) string {
	if d.After(series.Day(h.now().UTC())) {
		return "Date cannot be in the future."
	}
	return ""
}

// addRecord handles POST /{id}/records. A record for an existing date
// replaces its value.
func (h *Handler) addRecord(w http.ResponseWriter, r *http.Request) {
	ind, owner, ok := h.owned(w, r)
	if !ok {
		return
	}

	var in recordInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	fields := map[string]string{}
	if res := inputval.Validate(in); res.HasErrors() {
		fields = res.Fields()
	}
	if in.Value == nil {
		fields["value"] = "Value is required."
	} else if msg := checkValue(*in.Value); msg != "" {
		fields["value"] = msg
	}
	if _, bad := fields["date"]; !bad {
		d, _ := series.ParseDate(strings.TrimSpace(in.Date))
		if msg := h.checkDate(d); msg != "" {
			fields["date"] = msg
		}
	}
	if len(fields) > 0 {
		jsonutil.ValidationError(w, fields)
		return
	}

	_, err := h.records.Upsert(r.Context(), ind.ID, owner, recordstore.Entry{
		Date:  strings.TrimSpace(in.Date),
		Value: *in.Value,
	})
	if err != nil {
		h.errLog.Internal(w, r, "failed to save record", err)
		return
	}
	metrics.RecordsWritten.WithLabelValues("api").Inc()
	h.touch(r, ind.ID)
	h.writeDetail(w, r, http.StatusOK, ind)
}

// deleteRecord handles DELETE /{id}/records/{date}.
func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	ind, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")
	if !inputval.IsValidDate(date) {
		jsonutil.BadRequest(w, "Date must be in YYYY-MM-DD format.")
		return
	}

	err := h.records.DeleteByDate(r.Context(), ind.ID, date)
	if errors.Is(err, recordstore.ErrNotFound) {
		jsonutil.NotFound(w, "No record on "+date)
		return
	}
	if err != nil {
		h.errLog.Internal(w, r, "failed to delete record", err)
		return
	}
	h.touch(r, ind.ID)
	h.writeDetail(w, r, http.StatusOK, ind)
}

func (h *Handler) touch(r *http.Request, id primitive.ObjectID) {
	if err := h.indicators.Touch(r.Context(), id); err != nil {
		h.logger.Warn("failed to touch indicator", zap.String("indicator_id", id.Hex()), zap.Error(err))
	}
}

// listRecords handles GET /{id}/records, newest date first.
func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	ind, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	pr, err := jsonutil.ParsePage(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	recs, total, err := h.records.Page(r.Context(), ind.ID, pr.Page, pr.Size)
	if err != nil {
		h.errLog.Internal(w, r, "failed to page records", err)
		return
	}
	jsonutil.OK(w, jsonutil.NewPaged(recs, pr, total))
}

// RejectedRow is a CSV row that was not imported.
type RejectedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult reports the outcome of a CSV import.
type ImportResult struct {
	Imported int           `json:"imported"`
	Rejected []RejectedRow `json:"rejected"`
}

// importRecords handles POST /{id}/records/import. The body is either a
// multipart form with a "file" part or a raw CSV document.
func (h *Handler) importRecords(w http.ResponseWriter, r *http.Request) {
	ind, owner, ok := h.owned(w, r)
	if !ok {
		return
	}

	body, closeBody, err := csvBody(w, r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	defer closeBody()

	entries, result, err := h.parseCSV(body)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if len(entries) == 0 && len(result.Rejected) == 0 {
		jsonutil.BadRequest(w, "The CSV file has no rows.")
		return
	}

	if len(entries) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
		n, err := h.records.UpsertMany(ctx, ind.ID, owner, entries)
		cancel()
		if err != nil {
			h.errLog.Internal(w, r, "failed to import records", err)
			return
		}
		metrics.RecordsWritten.WithLabelValues("import").Add(float64(n))
		h.touch(r, ind.ID)
	}
	result.Imported = len(entries)

	h.logger.Info("records imported",
		zap.String("user_id", owner.Hex()),
		zap.String("indicator_id", ind.ID.Hex()),
		zap.Int("imported", result.Imported),
		zap.Int("rejected", len(result.Rejected)))
	jsonutil.OK(w, result)
}

// csvBody returns a reader over the uploaded CSV, whichever way it was sent.
func csvBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, noop, nil
	}
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return nil, noop, errors.New("Could not read the upload.")
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, noop, errors.New(`The upload has no "file" part.`)
	}
	return f, func() { _ = f.Close() }, nil
}

// parseCSV reads "date,value" rows. Dates are parsed leniently. A first
// row whose date does not parse is taken as a header and skipped.
func (h *Handler) parseCSV(src io.Reader) ([]recordstore.Entry, ImportResult, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	result := ImportResult{Rejected: []RejectedRow{}}
	var entries []recordstore.Entry
	first := true

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, result, fmt.Errorf("Malformed CSV at line %d.", pe.Line)
			}
			return nil, result, errors.New("Could not read the CSV file.")
		}
		line, _ := cr.FieldPos(0)
		isFirst := first
		first = false

		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < 2 {
			result.Rejected = append(result.Rejected, RejectedRow{Line: line, Reason: "Expected date,value."})
			continue
		}

		e, reason := h.parseRow(row[0], row[1])
		if reason != "" {
			if isFirst && reason == msgBadDate {
				continue
			}
			result.Rejected = append(result.Rejected, RejectedRow{Line: line, Reason: reason})
			continue
		}
		entries = append(entries, e)
	}
	return entries, result, nil
}

const msgBadDate = "Unrecognized date."

func (h *Handler) parseRow(rawDate, rawValue string) (recordstore.Entry, string) {
	t, err := dateparse.ParseIn(strings.TrimSpace(rawDate), time.UTC)
	if err != nil {
		return recordstore.Entry{}, msgBadDate
	}
	d := series.Day(t)
	if msg := h.checkDate(d); msg != "" {
		return recordstore.Entry{}, msg
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rawValue), 64)
	if err != nil {
		return recordstore.Entry{}, "Value is not a number."
	}
	if msg := checkValue(v); msg != "" {
		return recordstore.Entry{}, msg
	}
	return recordstore.Entry{Date: series.FormatDate(d), Value: v}, ""
}
