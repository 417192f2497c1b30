/*
Package log provides structured logging for the coordination runtime using
zerolog.

Initialize once via Init, then log through the global Logger or a
component-scoped child logger:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	log.Info("runtime starting")

	partitionLog := log.WithPartitionID(3)
	partitionLog.Info().Msg("partition opened")

	sessionLog := log.WithComponent("session").With().
		Uint64("session_id", uint64(id)).Logger()
	sessionLog.Warn().Msg("session suspended")

Component loggers (WithComponent, WithNodeID, WithPartitionID,
WithSessionID) attach one field and return a derived zerolog.Logger;
chain .With() calls for more context. Fatal exits the process (os.Exit(1))
and should only be used for unrecoverable bring-up failures.
*/
package log
