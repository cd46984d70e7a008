package plctag

import (
	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// newSLCBackend builds the native SLC-500/MicroLogix protected-typed-
// logical backend: PCCC over CIP Execute PCCC, no DH+ bridging, the
// SLC 3-field address (file, type, element).
func newSLCBackend(cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler) (Backend, error) {
	return newPCCCBackendCommon(cfg, sess, sched, dialectSLC, nil)
}
