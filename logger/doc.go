// Package logger provides structured logging for mediafs using zerolog.
//
// Loggers are scoped per component and carry structured fields:
//
//	log := logger.New(&cfg, "mediafs").WithComponent("filesystem")
//	log.Info("file added", logger.Fields(logger.FieldStorageKey, key))
package logger
