/*
Package diagnostics provides sinks for failure records emitted while a
pipeline drops failed items.

The LogAndIgnore strategy writes one Record per dropped failure. A Sink only
needs the "write one failure record" capability; writes are best effort and
a failing sink never fails the pipeline run.

# Sinks

	sink := diagnostics.NewLogSink(logger)            // zerolog, one event per failure
	sink, err := diagnostics.NewRedisSink(diagnostics.RedisConfig{
		Client: redisClient,
		Stream: "pipex:failures",
		MaxLen: 10000,
	})                                                 // Redis stream (XADD)
	sink := diagnostics.NewMemorySink()               // captured in memory, for tests
	sink := diagnostics.Multi(logSink, redisSink)      // fan-out
*/
package diagnostics
