// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package handler

import (
	"net/http"

	"github.com/fos-lang/fos-engine/config"
	"github.com/fos-lang/fos-engine/logger"
	"github.com/fos-lang/fos-engine/runregistry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns an http.Handler that exposes the run-submission service.
func Handler(_ *config.Config, reg *runregistry.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)

	// Submit a script for execution.
	r.Mount("/runs", func() http.Handler {
		sr := chi.NewRouter()
		sr.Post("/", HandleSubmitRun(reg))
		sr.Get("/{id}", HandlePollRun(reg))
		sr.Get("/{id}/stream", HandleStreamRun(reg))
		sr.Delete("/{id}", HandleCancelRun(reg))
		return sr
	}())

	// Health check
	r.Mount("/healthz", func() http.Handler {
		sr := chi.NewRouter()
		sr.Get("/", HandleHealth())
		return sr
	}())

	return r
}
