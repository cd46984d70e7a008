package plctag

import (
	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// newLogixPCCCBackend builds the backend for a ControlLogix running in
// PCCC-compatibility mode: same Execute PCCC envelope as the native PLC-5
// backend (ControlLogix accepts PLC-5 typed-logical addressing in this
// mode), no DH+ header since the Logix itself is the final hop.
func newLogixPCCCBackend(cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler) (Backend, error) {
	return newPCCCBackendCommon(cfg, sess, sched, dialectPLC5, nil)
}
