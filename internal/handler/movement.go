package handler

import (
	"net/http"

	"bbdist/internal/httpio"
	"bbdist/internal/model"
	"bbdist/internal/mw"
)

type movementRequest struct {
	UnitNumber  string `json:"unitNumber"`
	ProductCode string `json:"productCode"`
	From        string `json:"from"`
	To          string `json:"to"`
	Reason      string `json:"reason"`
}

// RecordMovementHandler serves POST /v1/returns, /v1/imports and /v1/transfers.
func RecordMovementHandler(kind model.MovementKind, movements MovementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req movementRequest
		if err := httpio.Decode(r.Body, &req); err != nil {
			_ = httpio.BadRequestResponse(w, "invalid json")
			return
		}

		m := model.Movement{
			Kind:        kind,
			UnitNumber:  req.UnitNumber,
			ProductCode: req.ProductCode,
			From:        req.From,
			To:          req.To,
			Reason:      req.Reason,
		}
		if claims, ok := mw.ClaimsFrom(r.Context()); ok {
			m.CreatedBy = claims.Subject
		}
		if err := m.Validate(); err != nil {
			_ = httpio.FailedValidationResponse(w, err)
			return
		}

		recorded, err := movements.Record(r.Context(), m)
		if err != nil {
			writeServiceError(w, "movement record", err)
			return
		}
		_ = httpio.WriteJSON(w, http.StatusCreated, recorded)
	}
}

func ListMovementsHandler(kind model.MovementKind, movements MovementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := movements.List(r.Context(), kind, limitParam(r))
		if err != nil {
			writeServiceError(w, "movement list", err)
			return
		}
		writeList(w, list)
	}
}
