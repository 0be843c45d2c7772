// Package logging provides structured logging for the dealscout binaries.
//
// It wraps zap with:
//   - a Trace level below Debug
//   - stdout, stderr and OpenTelemetry outputs
//   - request and persona correlation fields taken from the context
//   - key and pattern based redaction
//   - per-level sampling (errors are never sampled)
//
// Library packages take a plain *zap.Logger; use Logger.Underlying to hand
// one over.
//
//	cfg, _ := logging.FromSettings("debug", "console")
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, req.ID)
//	ctx = logging.WithPersonaID(ctx, "early")
//	logger.Info(ctx, "dispatch accepted", zap.String("trigger", "score-person"))
//
// Tests use NewTestLogger and its assertions:
//
//	tl := logging.NewTestLogger()
//	svc := dispatch.New(deps, dispatch.WithLogger(tl.Underlying()))
//	tl.AssertLogged(t, zapcore.ErrorLevel, "handler panicked")
package logging
