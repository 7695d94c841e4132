package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/verification"
)

const maxBodyBytes = 1 << 20

// VerifyRequest is the verification form. SubmissionJSON may be the JSON
// value itself or a string holding its text, as typed into a form.
type VerifyRequest struct {
	SubmissionJSON json.RawMessage `json:"submissionJson"`
	SubmissionID   string          `json:"submissionId"`
	WalletAddress  string          `json:"walletAddress"`
	Quality        string          `json:"quality"`
}

// StepView is one progress entry as rendered to clients
type StepView struct {
	Stage       string `json:"stage"`
	Status      string `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Value       string `json:"value,omitempty"`
	Error       string `json:"error,omitempty"`
}

// VerifyResponse is the body of every /verify answer past validation
type VerifyResponse struct {
	RunID   string                `json:"run_id"`
	Stage   string                `json:"stage"`
	Steps   []StepView            `json:"steps"`
	Result  *verification.Result  `json:"result,omitempty"`
	Outcome *verification.Outcome `json:"outcome,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// ValidationResponse lists field errors
type ValidationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Form converts the request into the raw form shape.
func (req VerifyRequest) Form() (submissions.FormInput, error) {
	form := submissions.FormInput{
		SubmissionID:  req.SubmissionID,
		WalletAddress: req.WalletAddress,
		Quality:       req.Quality,
	}

	raw := bytes.TrimSpace(req.SubmissionJSON)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &form.SubmissionJSON); err != nil {
			return form, err
		}
	default:
		form.SubmissionJSON = string(raw)
	}
	return form, nil
}

func (s *APIServer) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Error: "invalid request body"})
		return
	}

	form, err := req.Form()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Error: "invalid request body"})
		return
	}

	input, err := submissions.ParseForm(form)
	if err != nil {
		fields, _ := submissions.AsValidationErrors(err)
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Error: "invalid form", Fields: fields})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	state, err := s.verifier.Run(ctx, input)
	resp := renderState(state)

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, verification.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Error: err.Error()})
	case errors.Is(err, verification.ErrStageTimeout), errors.Is(err, context.DeadlineExceeded):
		resp.Error = err.Error()
		writeJSON(w, http.StatusGatewayTimeout, resp)
	case errors.Is(err, verification.ErrCancelled):
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
	}
}

func renderState(state verification.State) VerifyResponse {
	resp := VerifyResponse{
		RunID: state.RunID,
		Stage: state.Stage.String(),
		Steps: make([]StepView, 0, len(state.Steps)),
	}
	for _, step := range state.Steps {
		view := StepView{
			Stage:       step.Stage.String(),
			Status:      step.Status.String(),
			Title:       step.Title(),
			Description: step.Description(),
			Value:       step.Value,
		}
		if step.Err != nil {
			view.Error = step.Err.Error()
		}
		resp.Steps = append(resp.Steps, view)
	}
	if state.Result != nil {
		result := *state.Result
		outcome := verification.Report(result)
		resp.Result = &result
		resp.Outcome = &outcome
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}
