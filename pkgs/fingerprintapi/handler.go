package fingerprintapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/canonical"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/crypto"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

// Response codes carried in the envelope
const (
	CodeOK         = 0
	CodeBadRequest = 400
	CodeInternal   = 500
)

const maxBodyBytes = 1 << 20

// Handler computes fingerprints with the local calculator and answers in the
// endpoint's envelope format.
type Handler struct {
	calc *crypto.Calculator
}

func NewHandler(calc *crypto.Calculator) *Handler {
	return &Handler{calc: calc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, Response{Code: CodeBadRequest, Message: "invalid request body"})
		return
	}

	quality, err := submissions.ParseQuality(req.Quality)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, Response{Code: CodeBadRequest, Message: err.Error()})
		return
	}

	fp, err := h.calc.Compute(submissions.SubmissionInput{
		SubmissionJSON: submitData(req.SubmitData),
		WalletAddress:  strings.TrimSpace(req.Address),
		Quality:        quality,
	})
	switch {
	case errors.Is(err, crypto.ErrInvalidAddress),
		errors.Is(err, crypto.ErrInvalidQuality),
		errors.Is(err, canonical.ErrCanonicalize):
		writeEnvelope(w, http.StatusBadRequest, Response{Code: CodeBadRequest, Message: err.Error()})
		return
	case err != nil:
		log.WithError(err).Error("Fingerprint generation failed")
		writeEnvelope(w, http.StatusInternalServerError, Response{Code: CodeInternal, Message: "internal error"})
		return
	}

	writeEnvelope(w, http.StatusOK, Response{
		Code:    CodeOK,
		Message: "success",
		Data:    &ResponseData{Fingerprint: strings.TrimPrefix(fp.String(), "0x")},
	})
}

// submitData maps a wire null to "no submission JSON", the only way the
// endpoint's callers express absence.
func submitData(v *canonical.Value) *canonical.Value {
	if v == nil || v.IsNull() {
		return nil
	}
	return v
}

func writeEnvelope(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}
