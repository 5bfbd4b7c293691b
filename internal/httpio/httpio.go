package httpio

import (
	"encoding/json"
	"io"
	"net/http"
)

const maxBody = 1 << 20

func Decode(r io.Reader, data any) error {
	dec := json.NewDecoder(io.LimitReader(r, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(data)
}

func WriteJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func ErrorResponse(w http.ResponseWriter, code int, msg string) error {
	return WriteJSON(w, code, map[string]string{
		"error": msg,
	})
}

func BadRequestResponse(w http.ResponseWriter, msg string) error {
	return ErrorResponse(w, http.StatusBadRequest, msg)
}

func NotFoundResponse(w http.ResponseWriter) error {
	return ErrorResponse(w, http.StatusNotFound, "not found")
}

func InternalServerErrorResponse(w http.ResponseWriter) error {
	return ErrorResponse(w, http.StatusInternalServerError, "internal error")
}

func FailedValidationResponse(w http.ResponseWriter, err error) error {
	return ErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
}
