package supervisor

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"
)

// feedMessages accumulates newline-delimited JSON on a Child's IPC
// channel. Complete lines are decoded and delivered to OnChildMessage in
// order; malformed lines are dropped silently (logged at Debug via
// internal/diag). Partial trailing bytes are buffered per child between
// reads — spec.md §9 names this the "faithful" option and spec.md §4.6
// explicitly allows it.
func (s *Supervisor) feedMessages(c *Child, data []byte) {
	c.ipcBuf = append(c.ipcBuf, data...)

	for {
		i := bytes.IndexByte(c.ipcBuf, '\n')
		if i < 0 {
			break
		}
		line := c.ipcBuf[:i]
		c.ipcBuf = c.ipcBuf[i+1:]

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var msg any
		if err := json.Unmarshal(line, &msg); err != nil {
			s.log.Debug("dropping malformed IPC line", zap.Int("pid", c.Pid), zap.Error(err))
			dumpMalformedLine(s.log, c.Pid, line)
			continue
		}

		if s.cfg.OnChildMessage != nil {
			s.cfg.OnChildMessage(c, msg)
		}
	}
}
