package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/dispatch"
	"github.com/Gfacello/ute-energy-cost/pkg/log"
	"github.com/Gfacello/ute-energy-cost/pkg/tariff"
	"github.com/Gfacello/ute-energy-cost/pkg/types"
)

type stateResponse struct {
	Tariff         types.TariffKind              `json:"tariff"`
	LastUpdateTS   time.Time                     `json:"lastUpdateTS"`
	LastReadingKWH *float64                      `json:"lastReadingKWH"`
	KWHToday       float64                       `json:"kwhToday"`
	KWHMonth       float64                       `json:"kwhMonth"`
	CostToday      float64                       `json:"costToday"`
	CostMonth      float64                       `json:"costMonth"`
	Breakdown      map[string]types.PeriodTotals `json:"breakdown,omitempty"`
}

func (s *Server) stateResponse(state types.MeterState) stateResponse {
	return stateResponse{
		Tariff:         s.opts.Tariff,
		LastUpdateTS:   state.LastUpdateTS,
		LastReadingKWH: state.LastReadingKWH,
		KWHToday:       state.KWHToday,
		KWHMonth:       state.KWHMonth,
		CostToday:      state.CostToday,
		CostMonth:      state.CostMonth,
		Breakdown:      state.Breakdown,
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.stateResponse(s.acc.Snapshot()))
}

type pricesResponse struct {
	Tariff            types.TariffKind `json:"tariff"`
	Mode              types.PriceMode  `json:"mode"`
	PriceKWHNow       *float64         `json:"priceKWHNow"`
	AvgKWHMonth       *float64         `json:"avgKWHMonth"`
	EffectiveKWHMonth *float64         `json:"effectiveKWHMonth"`
	Headline          *float64         `json:"headline"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	state := s.acc.Snapshot()
	now := time.Now()
	writeJSON(w, pricesResponse{
		Tariff:            s.opts.Tariff,
		Mode:              s.opts.Mode,
		PriceKWHNow:       tariff.PriceNow(state, now, s.opts),
		AvgKWHMonth:       tariff.AveragePrice(state),
		EffectiveKWHMonth: tariff.EffectivePrice(state, s.opts),
		Headline:          tariff.HeadlinePrice(state, now, s.opts),
	})
}

type periodResponse struct {
	Tariff types.TariffKind `json:"tariff"`
	At     time.Time        `json:"at"`
	types.PeriodInfo
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	at := r.URL.Query().Get("at")
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			writeJSONError(w, "invalid at, expected RFC3339", http.StatusBadRequest)
			return
		}
		now = t
	}
	writeJSON(w, periodResponse{
		Tariff:     s.opts.Tariff,
		At:         now.In(s.opts.Loc()),
		PeriodInfo: tariff.Classify(s.opts.Tariff, now, s.opts),
	})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	state := s.acc.Snapshot()
	breakdown := state.Breakdown
	if breakdown == nil {
		breakdown = map[string]types.PeriodTotals{}
	}
	writeJSON(w, struct {
		Tariff    types.TariffKind              `json:"tariff"`
		MonthKey  string                        `json:"monthKey"`
		Breakdown map[string]types.PeriodTotals `json:"breakdown"`
	}{
		Tariff:    s.opts.Tariff,
		MonthKey:  state.MonthKey,
		Breakdown: breakdown,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc := s.opts.Loc()
	end := time.Now().In(loc)
	start := end.AddDate(0, 0, -7)

	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			writeJSONError(w, "invalid start, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			writeJSONError(w, "invalid end, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end = t
	}
	if end.Before(start) {
		writeJSONError(w, "end before start", http.StatusBadRequest)
		return
	}

	states, err := s.storage.GetStateHistory(ctx, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load history", slog.Any("error", err))
		writeJSONError(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	days := make([]stateResponse, len(states))
	for i, st := range states {
		days[i] = s.stateResponse(st)
	}
	writeJSON(w, struct {
		Days []stateResponse `json:"days"`
	}{Days: days})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := s.runCycle(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "update cycle failed", slog.Any("error", err))
		writeJSONError(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.stateResponse(state))
}

type dispatchRequest struct {
	ValueSource dispatch.ValueSource `json:"valueSource"`
	TargetURL   string               `json:"targetURL,omitempty"`
	RoundDigits *int                 `json:"roundDigits,omitempty"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	value := dispatch.ResolveValue(req.ValueSource, s.acc.Snapshot(), time.Now(), s.opts)
	if value == nil {
		writeJSONError(w, "no value available for "+string(req.ValueSource), http.StatusUnprocessableEntity)
		return
	}
	v := *value
	if req.RoundDigits != nil {
		v = dispatch.Round(v, *req.RoundDigits)
	}

	target := s.dispatch
	if req.TargetURL != "" {
		t, err := dispatch.NewHTTPTarget(req.TargetURL)
		if err != nil {
			writeJSONError(w, "invalid targetURL", http.StatusBadRequest)
			return
		}
		target = t
	}
	if target == nil {
		writeJSONError(w, "no dispatch target configured", http.StatusBadRequest)
		return
	}

	if err := target.Push(ctx, req.ValueSource, v); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "dispatch failed",
			slog.String("valueSource", string(req.ValueSource)),
			slog.Any("error", err),
		)
		writeJSONError(w, "dispatch failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, struct {
		ValueSource dispatch.ValueSource `json:"valueSource"`
		Value       float64              `json:"value"`
	}{ValueSource: req.ValueSource, Value: v})
}
