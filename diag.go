package supervisor

import (
	"github.com/procpool/supervisor/internal/diag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// dumpMalformedLine spew-dumps a dropped IPC payload, gated behind the
// logger's own Debug check so the dump is never built in production.
func dumpMalformedLine(log *zap.Logger, pid int, line []byte) {
	if !log.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	log.Debug(diag.DumpBytes("malformed IPC payload", line), zap.Int("pid", pid))
}

// dumpSpawnError spew-dumps a SpawnError's cause chain at Debug level.
func dumpSpawnError(log *zap.Logger, err error) {
	if !log.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	log.Debug(diag.DumpErrChain(err))
}
