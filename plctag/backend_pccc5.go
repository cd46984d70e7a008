package plctag

import (
	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// newPCCC5Backend builds the native PLC-5 typed-logical backend: PCCC
// over CIP Execute PCCC, no DH+ bridging, PLC-5 3-level addressing.
func newPCCC5Backend(cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler) (Backend, error) {
	return newPCCCBackendCommon(cfg, sess, sched, dialectPLC5, nil)
}
