// Package indicatorsapi serves indicators and their records: CRUD, the
// record table, CSV import, and the chart series in JSON or PNG form.
//
// Every route acts on the signed-in user's indicators only. Another user's
// indicator answers 404 as if it did not exist.
package indicatorsapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/stratatrack/internal/app/features/errors"
	indicatorstore "github.com/dalemusser/stratatrack/internal/app/store/indicators"
	preferencestore "github.com/dalemusser/stratatrack/internal/app/store/preferences"
	recordstore "github.com/dalemusser/stratatrack/internal/app/store/records"
	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratatrack/internal/app/system/inputval"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"github.com/dalemusser/stratatrack/internal/app/system/txn"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/stratatrack/internal/domain/series"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const msgNotFound = "Indicator not found"

// Handler provides the indicator endpoints.
type Handler struct {
	db         *mongo.Database
	indicators *indicatorstore.Store
	records    *recordstore.Store
	prefs      *preferencestore.Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a new indicatorsapi Handler.
func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		db:         db,
		indicators: indicatorstore.New(db),
		records:    recordstore.New(db),
		prefs:      preferencestore.New(db),
		errLog:     errLog,
		logger:     logger,
		now:        time.Now,
	}
}

// Routes returns a chi.Router meant to be mounted at /api/indicators.
func Routes(h *Handler, sm *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Route("/{id}", func(ir chi.Router) {
		ir.Get("/", h.get)
		ir.Put("/", h.update)
		ir.Delete("/", h.delete)

		ir.Get("/records", h.listRecords)
		ir.Post("/records", h.addRecord)
		ir.Post("/records/import", h.importRecords)
		ir.Delete("/records/{date}", h.deleteRecord)

		ir.Get("/chart", h.chart)
		ir.Get("/chart.png", h.chartPNG)
		ir.Put("/period", h.savePeriod)
	})
	return r
}

// Detail is an indicator with all its records, oldest first.
type Detail struct {
	models.Indicator
	Records []models.Record `json:"records"`
}

type indicatorInput struct {
	Name        string `json:"name" validate:"required,max=40" label:"Name"`
	Unit        string `json:"unit" validate:"max=16" label:"Unit"`
	Description string `json:"description" validate:"max=200" label:"Description"`
}

// decodeIndicator reads and validates an indicator body. Markup is stripped
// before validation so a name made only of tags counts as empty.
func decodeIndicator(w http.ResponseWriter, r *http.Request) (indicatorstore.Input, bool) {
	var in indicatorInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return indicatorstore.Input{}, false
	}
	in.Name = strings.TrimSpace(htmlsanitize.StripTags(in.Name))
	in.Unit = strings.TrimSpace(htmlsanitize.StripTags(in.Unit))
	in.Description = strings.TrimSpace(htmlsanitize.StripTags(in.Description))
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res.Fields())
		return indicatorstore.Input{}, false
	}
	return indicatorstore.Input{Name: in.Name, Unit: in.Unit, Description: in.Description}, true
}

// owned loads the {id} indicator for the current user, writing 400/404/500
// itself when it cannot.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (*models.Indicator, primitive.ObjectID, bool) {
	cu, _ := auth.CurrentUser(r)
	owner := cu.UserID()

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, msgNotFound)
		return nil, owner, false
	}
	ind, err := h.indicators.Get(r.Context(), id, owner)
	if errors.Is(err, indicatorstore.ErrNotFound) {
		jsonutil.NotFound(w, msgNotFound)
		return nil, owner, false
	}
	if err != nil {
		h.errLog.Internal(w, r, "failed to load indicator", err)
		return nil, owner, false
	}
	return ind, owner, true
}

// writeDetail responds with the indicator and its current records.
func (h *Handler) writeDetail(w http.ResponseWriter, r *http.Request, status int, ind *models.Indicator) {
	recs, err := h.records.ListAscending(r.Context(), ind.ID)
	if err != nil {
		h.errLog.Internal(w, r, "failed to list records", err)
		return
	}
	jsonutil.JSON(w, status, Detail{Indicator: *ind, Records: recs})
}

// create handles POST /.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeIndicator(w, r)
	if !ok {
		return
	}
	cu, _ := auth.CurrentUser(r)
	ind, err := h.indicators.Create(r.Context(), cu.UserID(), in)
	if err != nil {
		h.errLog.Internal(w, r, "failed to create indicator", err)
		return
	}
	h.logger.Debug("indicator created", zap.String("user_id", cu.ID), zap.String("indicator_id", ind.ID.Hex()))
	jsonutil.JSON(w, http.StatusCreated, Detail{Indicator: ind, Records: []models.Record{}})
}

// list handles GET /, newest first.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	pr, err := jsonutil.ParsePage(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	cu, _ := auth.CurrentUser(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	list, total, err := h.indicators.ListByOwner(ctx, cu.UserID(), pr.Page, pr.Size)
	if err != nil {
		h.errLog.Internal(w, r, "failed to list indicators", err)
		return
	}
	jsonutil.OK(w, jsonutil.NewPaged(list, pr, total))
}

// get handles GET /{id}.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ind, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	h.writeDetail(w, r, http.StatusOK, ind)
}

// update handles PUT /{id}.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ind, owner, ok := h.owned(w, r)
	if !ok {
		return
	}
	in, ok := decodeIndicator(w, r)
	if !ok {
		return
	}
	updated, err := h.indicators.Update(r.Context(), ind.ID, owner, in)
	if errors.Is(err, indicatorstore.ErrNotFound) {
		jsonutil.NotFound(w, msgNotFound)
		return
	}
	if err != nil {
		h.errLog.Internal(w, r, "failed to update indicator", err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, updated)
}

// delete handles DELETE /{id}, removing the records and the stored period
// preference with it.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ind, owner, ok := h.owned(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	var n int64
	err := txn.Run(ctx, h.db, h.logger, func(ctx context.Context) error {
		var err error
		if n, err = h.records.DeleteByIndicator(ctx, ind.ID); err != nil {
			return err
		}
		if err := h.prefs.Delete(ctx, owner, series.PeriodKey(ind.ID.Hex())); err != nil {
			return err
		}
		if err := h.indicators.Delete(ctx, ind.ID, owner); err != nil && !errors.Is(err, indicatorstore.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		h.errLog.Internal(w, r, "failed to delete indicator", err)
		return
	}
	h.logger.Info("indicator deleted",
		zap.String("user_id", owner.Hex()),
		zap.String("indicator_id", ind.ID.Hex()),
		zap.Int64("records", n))
	jsonutil.NoContent(w)
}
