// Package main hosts the runwatch entrypoint.
//
// Architecture overview:
//   - Streams: internal/eventsource opens one r3labs/sse subscription per channel (logs, progress,
//     heartbeats), unwraps the {"message": ...} envelope and funnels everything into one delivery channel.
//     Connection errors surface as deliveries carrying the ready state.
//   - Monitor: internal/monitor owns all page state on a single goroutine. Progress updates run through the
//     pure reducer in internal/progress; heartbeats feed the edge-triggered watchdog; the next-step controller
//     arms the follow-up navigation after a successful image build.
//   - Views: internal/view renders into an in-memory Page, either printed line by line (Terminal, lipgloss
//     styles) or shown full screen by the bubbletea model in internal/view/tui.
//   - HTTP: with --server, internal/api serves /healthz, /readyz, /metrics, /v1/state and /v1/next-step.
//   - Plumbing: Viper resolves flags, RUNWATCH_* env and runwatch.yaml; zap logs to stderr; Prometheus
//     collectors and optional OpenTelemetry spans cover deliveries, liveness edges and HTTP requests.
//
// Quick checklist:
//   - runwatch watch --base-url http://localhost:5000/stream [--category imageBuild] [--tui] [--server].
//   - runwatch config prints the resolved configuration with secrets masked.
package main
