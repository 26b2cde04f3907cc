// Package logger expone un logger Zap singleton con scoping por contexto.
//
// Inicialización (una vez en main):
//
//	logger.Init(logger.Config{Env: cfg.Logging.Env, Level: cfg.Logging.Level})
//	defer logger.Sync()
//
// En services, con el logger "scoped" que inyecta el middleware HTTP:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("verify.trigger"))
//	log.Info("challenge created", logger.Serial(tok.Serial), logger.TransactionID(tx.ID))
//
// Nunca loguear OTPs, seeds, PINs, TANs ni firmas.
package logger
