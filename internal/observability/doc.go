// Package observability provides logging, metrics and context helpers for
// the paper retrieval service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for searches, sources, ranking and summarization
//   - Context helpers for propagating request identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("query", q).Msg("search started")
//
// Scope a logger to a component or a query:
//
//	logger = observability.WithComponent(logger, "aggregator")
//	logger = observability.WithQueryContext(logger, query)
//
// # Metrics
//
// Initialize metrics once per process:
//
//	metrics := observability.NewMetrics("paper_retrieval")
//
// Record metrics:
//
//	metrics.RecordSourceSearchCompleted("arxiv", 18, 2, 0.84)
//	metrics.RecordSearchRequest("ok", 1.9)
//
// Components accept a nil *Metrics and skip recording.
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithCorrelationID(ctx, correlationID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - correlation_id: identifier carried across HTTP and Kafka hops
//   - component: emitting subsystem (aggregator, pipeline, ranking...)
//   - query: user research query
//   - source: paper source (arxiv, semantic_scholar, openalex)
//   - paper_id: paper identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
