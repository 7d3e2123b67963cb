package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/service/restmirror"
)

// restMirror is the thin adapter between App and the restmirror package,
// keeping restmirror's import graph free of the service package itself.
type restMirror struct {
	srv *restmirror.Server
}

func newRESTMirror(app *App, port int, logger *zap.Logger) *restMirror {
	return &restMirror{srv: restmirror.New(app, port, logger)}
}

func (r *restMirror) Serve(ctx context.Context) error {
	return r.srv.Serve(ctx)
}

func (r *restMirror) Close(ctx context.Context) {
	_ = r.srv.Close(ctx)
}
