package webutils

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mogaika/bvh_player/kinerr"
)

const maxJsonBody = 1 << 20

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) {
	WriteFileHeaders(w, name)
	if _, err := io.Copy(w, in); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("error when writing file response")
	}
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal"))
	} else {
		w.Header().Set("Content-Type", "application/json")
		WriteResult(w, res)
	}
}

func WriteJsonFile(w http.ResponseWriter, v interface{}, fileName string) {
	if data, err := json.MarshalIndent(v, "", "  "); err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal"))
	} else {
		WriteFile(w, bytes.NewReader(data), fileName+".json")
	}
}

// ReadJson decodes a POST body into v, rejecting unknown fields.
func ReadJson(r *http.Request, v interface{}) error {
	if strings.ToUpper(r.Method) != "POST" {
		return errors.Errorf("Invalid http method %q", r.Method)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxJsonBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(err, "Failed to unmarshal")
	}
	return nil
}

func WriteResult(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Msg("error when writing response")
	}
}

// StatusCode maps domain errors onto HTTP statuses.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, kinerr.ErrEmptyStore), errors.Is(err, kinerr.ErrSampleOutOfRange):
		return http.StatusNotFound
	case kinerr.IsConfiguration(err), kinerr.IsFormat(err):
		return http.StatusUnprocessableEntity
	case kinerr.IsUnsupportedJoint(err), kinerr.IsCapacity(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func WriteError(w http.ResponseWriter, err error) {
	WriteErrorCode(w, err, StatusCode(err))
}

func WriteErrorCode(w http.ResponseWriter, err error, code int) {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		log.Error().Err(merr).Str("error", err.Error()).Msg("error marshaling error")
		http.Error(w, err.Error(), code)
		return
	}
	log.Debug().Int("code", code).Str("error", err.Error()).Msg("HERR")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	WriteResult(w, data)
}
