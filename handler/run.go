// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/fos-lang/fos-engine/api"
	"github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/runregistry"
)

// HandleSubmitRun compiles and starts executing a submitted script,
// returning its run ID immediately.
func HandleSubmitRun(reg *runregistry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteBadRequest(w, &errors.BadRequestError{Msg: "decoding run request: " + err.Error()})
			return
		}
		if req.Script == "" {
			WriteBadRequest(w, &errors.BadRequestError{Msg: "script is required"})
			return
		}

		run, err := reg.Submit(r.Context(), req)
		if err != nil {
			logrus.WithError(err).Errorln("handler: HandleSubmitRun()")
			WriteError(w, err)
			return
		}

		WriteJSON(w, api.RunResponse{ID: run.ID, Status: string(runregistry.StatusQueued)}, http.StatusAccepted)
	}
}

// HandlePollRun reports a run's current QAID status.
func HandlePollRun(reg *runregistry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, ok := reg.Get(id)
		if !ok {
			WriteNotFound(w, &errors.NotFoundError{Msg: "no such run: " + id})
			return
		}
		WriteJSON(w, run.Snapshot(), http.StatusOK)
	}
}

// HandleStreamRun returns the lines recorded for a run so far.
func HandleStreamRun(reg *runregistry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, ok := reg.Get(id)
		if !ok {
			WriteNotFound(w, &errors.NotFoundError{Msg: "no such run: " + id})
			return
		}
		snap := run.Snapshot()
		closed := snap.Status != string(runregistry.StatusQueued) && snap.Status != string(runregistry.StatusRunning)
		lines := run.Lines()
		out := make([]api.LogLine, len(lines))
		copy(out, lines)
		WriteJSON(w, api.StreamResponse{Lines: out, Closed: closed}, http.StatusOK)
	}
}

// HandleCancelRun aborts a queued or running run.
func HandleCancelRun(reg *runregistry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !reg.Cancel(id) {
			WriteNotFound(w, &errors.NotFoundError{Msg: "no such run: " + id})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
