// Package telemetry sets up OpenTelemetry for dealscout.
//
// The dispatcher opens one span per executed request ("dispatch.<trigger>")
// and the HTTP server records request counters and latency through the
// global meter. New installs OTLP exporters (gRPC or HTTP/protobuf) as the
// global providers when telemetry is enabled; otherwise the globals stay
// no-op.
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use TestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	d, _ := dispatch.New(deps, dispatch.WithTracer(tt.Tracer("dispatch")))
//	resp := d.Dispatch(ctx, req)
//	tt.AssertDispatched(t, resp.RequestID, "score-person", "early")
package telemetry
